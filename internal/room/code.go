package room

import "crypto/rand"

const (
	codeCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	codeLength  = 6

	// largest multiple of len(codeCharset) that fits in a byte; bytes at or
	// above it are redrawn so every character is equally likely
	codeByteLimit = 256 - 256%len(codeCharset)
)

// GenerateCode returns a short shareable room code. Uniqueness is the
// store's job.
func GenerateCode() (string, error) {
	return codeFrom(rand.Read)
}

func codeFrom(read func([]byte) (int, error)) (string, error) {
	code := make([]byte, 0, codeLength)
	buf := make([]byte, codeLength*2)
	for len(code) < codeLength {
		if _, err := read(buf); err != nil {
			return "", err
		}
		for _, b := range buf {
			if int(b) >= codeByteLimit {
				continue
			}
			code = append(code, codeCharset[int(b)%len(codeCharset)])
			if len(code) == codeLength {
				break
			}
		}
	}
	return string(code), nil
}
