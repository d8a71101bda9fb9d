package lobby

import (
	"crypto/rand"
)

const codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
const codeLength = 8

// newSessionCode generates a random 8-character [A-Z0-9] code and retries
// against the registry until it lands on one not already in use.
// __global__ is outside this alphabet's reach (it contains underscores) so
// it can never collide.
func (st *State) newSessionCode() (string, error) {
	for {
		code, err := randomCode()
		if err != nil {
			return "", err
		}
		if _, exists := st.registry.get(code); !exists {
			return code, nil
		}
	}
}

func randomCode() (string, error) {
	buf := make([]byte, codeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	out := make([]byte, codeLength)
	for i, b := range buf {
		out[i] = codeAlphabet[int(b)%len(codeAlphabet)]
	}
	return string(out), nil
}
