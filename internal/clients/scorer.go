package clients

import (
	"context"
	"net/http"
)

type Scorer struct {
	url    string
	client *http.Client
}

func NewScorer(baseURL string, client *http.Client) *Scorer {
	return &Scorer{url: endpoint(baseURL, "/score"), client: client}
}

type scoreResponse struct {
	Score float64 `json:"score"`
}

// Score returns the raw model output for the image. The value is not
// clamped.
func (s *Scorer) Score(ctx context.Context, image []byte) (float64, error) {
	var resp scoreResponse
	err := postJSON(ctx, s.client, "scorer", s.url, multipartForm{
		files: []formFile{{field: "image", name: "image.jpg", data: image}},
	}, &resp)
	if err != nil {
		return 0, err
	}
	return resp.Score, nil
}

type NSFWClassifier struct {
	url    string
	client *http.Client
}

func NewNSFWClassifier(baseURL string, client *http.Client) *NSFWClassifier {
	return &NSFWClassifier{url: endpoint(baseURL, "/check"), client: client}
}

type nsfwResponse struct {
	NSFW bool `json:"nsfw"`
}

func (c *NSFWClassifier) Check(ctx context.Context, image []byte) (bool, error) {
	var resp nsfwResponse
	err := postJSON(ctx, c.client, "nsfw", c.url, multipartForm{
		files: []formFile{{field: "image", name: "image.jpg", data: image}},
	}, &resp)
	if err != nil {
		return false, err
	}
	return resp.NSFW, nil
}
