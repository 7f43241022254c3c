package keyboard

import (
	"strconv"

	"github.com/Proton-105/himera-swap/internal/i18n"
)

// Page is one window over a list of Total items. Number is 1-based; Start and End slice the list.
type Page struct {
	Number int
	Pages  int
	Start  int
	End    int
}

// Paginate clamps number into range and computes the slice bounds for it.
// An empty list still has one (empty) page.
func Paginate(total, size, number int) Page {
	if size < 1 {
		size = 1
	}
	pages := max((total+size-1)/size, 1)
	number = min(max(number, 1), pages)
	start := min((number-1)*size, total)

	return Page{
		Number: number,
		Pages:  pages,
		Start:  start,
		End:    min(start+size, total),
	}
}

// PaginationButtons returns the prev, current and next page buttons for p. The buttons at the edges are left out.
func PaginationButtons(t i18n.Translator, action string, p Page) []InlineButton {
	if p.Pages < 1 {
		p.Pages = 1
	}
	p.Number = min(max(p.Number, 1), p.Pages)

	goTo := func(text string, n int) InlineButton {
		return InlineButton{Text: text, Action: action, Arg: strconv.Itoa(n)}
	}

	row := make([]InlineButton, 0, 3)
	if p.Number > 1 {
		row = append(row, goTo(i18n.Label(t, "pagination.pagination_prev", "◀️ Prev"), p.Number-1))
	}

	current := i18n.Label(t, "pagination.pagination_page", "Page {{.Page}}/{{.Total}}")
	row = append(row, goTo(i18n.Fill(current, "Page", strconv.Itoa(p.Number), "Total", strconv.Itoa(p.Pages)), p.Number))

	if p.Number < p.Pages {
		row = append(row, goTo(i18n.Label(t, "pagination.pagination_next", "Next ▶️"), p.Number+1))
	}

	return row
}
