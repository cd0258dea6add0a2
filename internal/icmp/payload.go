package icmp

// Payload returns the fixed echo payload pattern for the requested size:
// the lowercase alphabet repeated and truncated to n bytes.
func Payload(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = 'a' + byte(i%26)
	}
	return b
}
