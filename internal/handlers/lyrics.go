package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/dostlabs/dost/internal/credential"
	"github.com/dostlabs/dost/internal/inference"
	"github.com/dostlabs/dost/internal/invoker"
	"github.com/dostlabs/dost/internal/logging"
	"github.com/dostlabs/dost/internal/store"
)

var (
	lyricsContainerRe = regexp.MustCompile(`(?i)<div[^>]*class="Lyrics__Container[\s\S]*?>([\s\S]*?)</div>`)
	htmlTagRe         = regexp.MustCompile(`<[^>]+>`)
	blankLinesRe      = regexp.MustCompile(`\n+`)

	imagineMarkers = []string{"khud se banao", "khud se lyric likho", "imagine"}
)

// Lyrics fetches song lyrics from Genius, or writes original ones on
// request, and always offers a music link alongside.
type Lyrics struct {
	inv       *invoker.Invoker
	llm       LLM
	history   store.Store
	play      *Play
	assistant string
	model     string
	client    *http.Client
}

// NewLyrics wires the lyrics handler. The play handler is reused for
// YouTube link resolution.
func NewLyrics(inv *invoker.Invoker, llm LLM, history store.Store, play *Play, assistant, model string) *Lyrics {
	return &Lyrics{
		inv:       inv,
		llm:       llm,
		history:   history,
		play:      play,
		assistant: assistant,
		model:     model,
		client:    &http.Client{Timeout: 20 * time.Second},
	}
}

// Handle implements Handler.
func (l *Lyrics) Handle(ctx context.Context, payload, id string) (string, error) {
	recent, _ := l.history.Recent(id, 3)
	summary, _ := l.history.Summary(id)

	refined := l.refineQuery(ctx, payload, recent)
	artist, song := splitArtistSong(refined)

	lower := strings.ToLower(payload)
	wantsOriginal := false
	for _, m := range imagineMarkers {
		if strings.Contains(lower, m) {
			wantsOriginal = true
			break
		}
	}

	var rawLyrics, source, musicLink string
	if wantsOriginal {
		rawLyrics = l.composeOriginal(ctx, payload, refined, recent)
	} else {
		rawLyrics, source = l.fetchGenius(ctx, artist, song)
		if title, link, err := l.play.firstResult(ctx, refined); err == nil {
			musicLink = link + " - " + title
		}
	}

	system := fmt.Sprintf(
		`You are %s, a dost-like assistant for %s. Date: %s.
Query: %q
Refined: %q
Recent messages:
%s
Known personal info: %q
Raw lyrics: %q
Lyrics source: %q
Music link: %q
If real lyrics were found, present them verbatim with their source and the music link.
If lyrics are original ones you wrote, present just the lyrics.
If nothing was found, apologise and share the music link instead.
Reply in Hinglish, short and fun, no robotic vibes.`,
		l.assistant, strings.ReplaceAll(id, "_", " "), localTime(),
		payload, refined, contextLines(recent), summary,
		orDefault(rawLyrics, "nahi mile"), orDefault(source, "source nahi mila"), orDefault(musicLink, "link nahi mila"),
	)

	out := l.inv.Do(ctx, func(ctx context.Context, cred credential.Credential) (string, error) {
		return l.llm.CollectStream(ctx, cred, inference.ChatRequest{
			System:      system,
			Messages:    []store.Message{{Role: "user", Content: payload}},
			Model:       l.model,
			Temperature: 0.8,
			MaxTokens:   1024,
		})
	})
	switch out.Kind {
	case invoker.KindFailure:
		return "", out.Err
	case invoker.KindRateLimited:
		return out.Notice, nil
	}
	if strings.TrimSpace(out.Text) == "" {
		if musicLink != "" {
			return "Lyrics mein thodi dikkat aa gayi! Yeh lo music link: " + musicLink, nil
		}
		return "Lyrics nahi mile, yaar!", nil
	}
	return out.Text, nil
}

// refineQuery normalizes the request into "artist - song title".
func (l *Lyrics) refineQuery(ctx context.Context, payload string, recent []store.Message) string {
	prompt := fmt.Sprintf(
		`Refine a lyrics request into "artist - song title". Date: %s.
Query: %q. Recent messages:
%s
Strip filler words (suno, achha, song, lyrics, likho).
If the artist is missing but the song is clear, guess the likely artist.
If the song is missing, use "artist - unknown".
Return ONLY the refined query.`,
		localTime(), payload, contextLines(recent),
	)

	out := l.inv.Do(ctx, func(ctx context.Context, cred credential.Credential) (string, error) {
		return l.llm.Complete(ctx, cred, inference.ChatRequest{
			System:      prompt,
			Model:       l.model,
			Temperature: 0.5,
			MaxTokens:   50,
		})
	})
	if !out.Success() || strings.TrimSpace(out.Text) == "" {
		return payload
	}
	return strings.TrimSpace(out.Text)
}

// composeOriginal writes short original lyrics when the user asks for
// made-up ones.
func (l *Lyrics) composeOriginal(ctx context.Context, payload, refined string, recent []store.Message) string {
	prompt := fmt.Sprintf(
		`You are %s, writing original song lyrics.
Query: %q. Refined: %q. Recent messages:
%s
Write short, fun lyrics in Hinglish or the song's likely language.
Lyrics only, no links or commentary.`,
		l.assistant, payload, refined, contextLines(recent),
	)

	out := l.inv.Do(ctx, func(ctx context.Context, cred credential.Credential) (string, error) {
		return l.llm.Complete(ctx, cred, inference.ChatRequest{
			System:      prompt,
			Model:       l.model,
			Temperature: 1.0,
			MaxTokens:   300,
		})
	})
	if !out.Success() {
		return ""
	}
	return strings.TrimSpace(out.Text)
}

// fetchGenius searches genius.com and scrapes the lyrics container off
// the song page. Returns empty strings when nothing usable turned up.
func (l *Lyrics) fetchGenius(ctx context.Context, artist, song string) (lyrics, source string) {
	if song == "" || song == "unknown" {
		return "", ""
	}
	query := strings.TrimSpace(artist + " " + song)

	searchURL := "https://genius.com/api/search?q=" + url.QueryEscape(query)
	body, err := l.get(ctx, searchURL)
	if err != nil {
		logging.Warnf("lyrics: genius search failed for %q: %v", query, err)
		return "", ""
	}

	var data struct {
		Response struct {
			Hits []struct {
				Result struct {
					Title         string `json:"title"`
					Path          string `json:"path"`
					PrimaryArtist struct {
						Name string `json:"name"`
					} `json:"primary_artist"`
				} `json:"result"`
			} `json:"hits"`
		} `json:"response"`
	}
	if err := json.Unmarshal(body, &data); err != nil || len(data.Response.Hits) == 0 {
		return "", ""
	}

	songPath := ""
	for _, hit := range data.Response.Hits {
		if strings.Contains(strings.ToLower(hit.Result.PrimaryArtist.Name), strings.ToLower(artist)) &&
			strings.Contains(strings.ToLower(hit.Result.Title), strings.ToLower(song)) {
			songPath = hit.Result.Path
			break
		}
	}
	if songPath == "" {
		songPath = data.Response.Hits[0].Result.Path
	}

	songURL := "https://genius.com" + songPath
	page, err := l.get(ctx, songURL)
	if err != nil {
		logging.Warnf("lyrics: genius page failed for %s: %v", songURL, err)
		return "", ""
	}
	m := lyricsContainerRe.FindSubmatch(page)
	if m == nil {
		return "", ""
	}
	text := htmlTagRe.ReplaceAllString(string(m[1]), "\n")
	text = strings.TrimSpace(blankLinesRe.ReplaceAllString(text, "\n"))
	if len(text) < 50 {
		return "", ""
	}
	return text, songURL
}

func (l *Lyrics) get(ctx context.Context, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36")
	resp, err := l.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s: %s", u, resp.Status)
	}
	return io.ReadAll(io.LimitReader(resp.Body, 4<<20))
}

func splitArtistSong(refined string) (artist, song string) {
	artist, song, found := strings.Cut(refined, " - ")
	if !found {
		return "", strings.TrimSpace(refined)
	}
	return strings.TrimSpace(artist), strings.TrimSpace(song)
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
