package offline

import (
	"bytes"
	"embed"
	"html/template"

	"github.com/mrlokans/offlinereader/internal/entities"
)

//go:embed templates/reader.html
var templateFS embed.FS

var readerTemplate = template.Must(template.ParseFS(templateFS, "templates/reader.html"))

type shellData struct {
	BookID       string
	BookTitle    string
	ChapterTitle string
	ChapterIndex int
	Content      template.HTML
	HasPrev      bool
	PrevIndex    int
	HasNext      bool
	NextIndex    int
	Position     int
	Total        int
}

// renderShell renders a cached chapter inside the reader layout. Navigation
// follows the stored spine.
func renderShell(book *entities.Book, chapter *entities.Chapter) ([]byte, error) {
	total := len(book.Spine)
	if total == 0 {
		total = book.SpineLen
	}

	title := chapter.Title
	if title == "" {
		for _, ref := range book.Spine {
			if ref.Index == chapter.ChapterIndex {
				title = ref.Title
				break
			}
		}
	}

	idx := chapter.ChapterIndex
	data := shellData{
		BookID:       book.BookID,
		BookTitle:    book.Title,
		ChapterTitle: title,
		ChapterIndex: idx,
		// Chapter HTML was rendered by the server and stored verbatim.
		Content:   template.HTML(chapter.HTML),
		HasPrev:   idx > 0,
		PrevIndex: idx - 1,
		HasNext:   idx < total-1,
		NextIndex: idx + 1,
		Position:  idx + 1,
		Total:     total,
	}

	var buf bytes.Buffer
	if err := readerTemplate.Execute(&buf, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
