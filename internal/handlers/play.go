package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/dostlabs/dost/internal/logging"
)

var (
	videoIDRe    = regexp.MustCompile(`"videoId":"(.*?)"`)
	videoTitleRe = regexp.MustCompile(`"title":\{"runs":\[\{"text":"(.*?)"\}`)

	errNoVideo = errors.New("no video found")
)

// Play resolves a song request to a YouTube Music link by scraping
// the first result off the public results page. No API key needed.
type Play struct {
	client *http.Client
}

// NewPlay builds the play handler.
func NewPlay() *Play {
	return &Play{client: &http.Client{Timeout: 15 * time.Second}}
}

// Handle implements Handler.
func (p *Play) Handle(ctx context.Context, payload, id string) (string, error) {
	song := strings.TrimSpace(payload)
	if song == "" {
		return "Konsa gaana, yaar? Naam toh bata!", nil
	}

	title, link, err := p.firstResult(ctx, song)
	if err != nil {
		logging.Warnf("play: lookup failed for %q: %v", song, err)
		return fmt.Sprintf("Yaar, %q nahi mila. Koi aur gaana try kar!", song), nil
	}
	return fmt.Sprintf("Ye le, bajao: %s\n%s", title, link), nil
}

// firstResult scrapes the top hit from the YouTube results page.
func (p *Play) firstResult(ctx context.Context, song string) (title, link string, err error) {
	u := "https://www.youtube.com/results?search_query=" + url.QueryEscape(song)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", "", err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("youtube results: %s", resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", "", err
	}

	idMatch := videoIDRe.FindSubmatch(body)
	if idMatch == nil {
		return "", "", errNoVideo
	}
	videoID := string(idMatch[1])

	title = song
	if m := videoTitleRe.FindSubmatch(body); m != nil {
		title = string(m[1])
	}
	return title, "https://music.youtube.com/watch?v=" + videoID, nil
}
