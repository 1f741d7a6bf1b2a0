package handlers

import "testing"

func TestSplitArtistSong(t *testing.T) {
	tests := []struct {
		in     string
		artist string
		song   string
	}{
		{"ap dhillon - brown munde", "ap dhillon", "brown munde"},
		{"arijit singh - kesariya", "arijit singh", "kesariya"},
		{"kesariya", "", "kesariya"},
		{"artist - unknown", "artist", "unknown"},
		{"a - b - c", "a", "b - c"},
	}
	for _, tt := range tests {
		artist, song := splitArtistSong(tt.in)
		if artist != tt.artist || song != tt.song {
			t.Errorf("splitArtistSong(%q) = %q, %q; want %q, %q", tt.in, artist, song, tt.artist, tt.song)
		}
	}
}

func TestVideoRegexes(t *testing.T) {
	page := `{"videoId":"dQw4w9WgXcQ","thumbnail":{}}` +
		`"title":{"runs":[{"text":"Brown Munde (Official)"}],"accessibility":{}}`

	if m := videoIDRe.FindStringSubmatch(page); m == nil || m[1] != "dQw4w9WgXcQ" {
		t.Errorf("videoIDRe matched %v", m)
	}
	if m := videoTitleRe.FindStringSubmatch(page); m == nil || m[1] != "Brown Munde (Official)" {
		t.Errorf("videoTitleRe matched %v", m)
	}
}

func TestLyricsContainerScrape(t *testing.T) {
	page := []byte(`<div data-x class="Lyrics__Container-sc-1 abc">Line one<br/>Line two<i>(adlib)</i></div>`)
	m := lyricsContainerRe.FindSubmatch(page)
	if m == nil {
		t.Fatal("lyricsContainerRe did not match")
	}
	text := htmlTagRe.ReplaceAllString(string(m[1]), "\n")
	if text == "" {
		t.Fatal("stripped lyrics are empty")
	}
}
