package clients

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
)

// Card is everything the renderer needs for a result image. Avatar and any
// of the thumbnails may be nil; the renderer draws placeholders for them.
type Card struct {
	Score       int
	Rank        int
	DisplayName string
	Avatar      []byte
	Top         [4][]byte
}

type Renderer struct {
	url    string
	client *http.Client
}

func NewRenderer(baseURL string, client *http.Client) *Renderer {
	return &Renderer{url: endpoint(baseURL, "/render"), client: client}
}

func (r *Renderer) Compose(ctx context.Context, card Card) ([]byte, error) {
	form := multipartForm{
		fields: map[string]string{
			"score":       strconv.Itoa(card.Score),
			"rank":        strconv.Itoa(card.Rank),
			"displayName": card.DisplayName,
		},
	}
	if card.Avatar != nil {
		form.files = append(form.files, formFile{field: "avatar", name: "avatar.jpg", data: card.Avatar})
	}
	for i, thumb := range card.Top {
		if thumb == nil {
			continue
		}
		form.files = append(form.files, formFile{field: fmt.Sprintf("top%d", i), name: fmt.Sprintf("top%d.jpg", i), data: thumb})
	}
	return post(ctx, r.client, "renderer", r.url, form)
}
