package store

// PerPage is the number of rows shown on every list screen.
const PerPage = 10

// MaxPage bounds requested page numbers so offsets cannot overflow.
const MaxPage = 1 << 20

// Page is one page of a filtered listing.
type Page[T any] struct {
	Items   []T
	Number  int
	PerPage int
	Total   int
}

func normalizePage(n int) int {
	switch {
	case n < 1:
		return 1
	case n > MaxPage:
		return MaxPage
	}
	return n
}

func (p Page[T]) offset() int {
	return (p.Number - 1) * p.PerPage
}

// Pages is the number of pages needed for Total rows, at least 1.
func (p Page[T]) Pages() int {
	if p.PerPage <= 0 || p.Total == 0 {
		return 1
	}
	return (p.Total + p.PerPage - 1) / p.PerPage
}

func (p Page[T]) HasPrev() bool { return p.Number > 1 }
func (p Page[T]) HasNext() bool { return p.Number < p.Pages() }
func (p Page[T]) PrevNum() int { return p.Number - 1 }
func (p Page[T]) NextNum() int { return p.Number + 1 }

// PageNumbers lists the page links to render: two pages at each edge, two
// before the current page and four after it. A zero marks a gap.
func (p Page[T]) PageNumbers() []int {
	const leftEdge, leftCurrent, rightCurrent, rightEdge = 2, 2, 5, 2

	pages := p.Pages()
	var out []int
	last := 0
	for n := 1; n <= pages; n++ {
		if n <= leftEdge ||
			(n > p.Number-leftCurrent-1 && n < p.Number+rightCurrent) ||
			n > pages-rightEdge {
			if last+1 != n {
				out = append(out, 0)
			}
			out = append(out, n)
			last = n
		}
	}
	return out
}
