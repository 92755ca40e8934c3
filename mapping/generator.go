package mapping

const (
	firstChars = "abcdefghijklmnopqrstuvwxyz"
	restChars  = "abcdefghijklmnopqrstuvwxyz0123456789_-"
)

// generator turns monotonically increasing counter into the shortest valid
// CSS identifiers: "a".."z", then "aa", "ab"... Names never start with a
// digit or "-" and never need escaping.
type generator struct {
	counter int
}

func (g *generator) next() string {
	name := nameOf(g.counter)
	g.counter++
	return name
}

// nameOf is bijective: every index maps to a distinct name and names are
// ordered by length first.
func nameOf(n int) string {
	if n < len(firstChars) {
		return firstChars[n : n+1]
	}
	n -= len(firstChars)

	// find length of the tail
	tail, span := 1, len(firstChars)*len(restChars)
	for n >= span {
		n -= span
		tail++
		span *= len(restChars)
	}

	buf := make([]byte, tail+1)
	for i := tail; i >= 1; i-- {
		buf[i] = restChars[n%len(restChars)]
		n /= len(restChars)
	}
	buf[0] = firstChars[n]
	return string(buf)
}
