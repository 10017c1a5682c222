package index

// Set is an insertion-ordered set of strings.
// The zero value is ready to use.
type Set struct {
	values []string
	index  map[string]int
}

// NewSet returns a set holding values in first-occurrence order.
func NewSet(values ...string) *Set {
	s := &Set{}
	for _, v := range values {
		s.Add(v)
	}
	return s
}

// Add inserts v and reports whether it was not already present.
func (s *Set) Add(v string) bool {
	if s.index == nil {
		s.index = make(map[string]int)
	}
	if _, ok := s.index[v]; ok {
		return false
	}
	s.index[v] = len(s.values)
	s.values = append(s.values, v)
	return true
}

func (s *Set) Has(v string) bool {
	if s == nil {
		return false
	}
	_, ok := s.index[v]
	return ok
}

func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.values)
}

// Values returns a copy of the members in insertion order.
func (s *Set) Values() []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s.values))
	copy(out, s.values)
	return out
}

func (s *Set) Clone() *Set {
	return NewSet(s.Values()...)
}
