package ulid

import (
	"bytes"
	"sort"
	"testing"
	"time"
)

func TestGenerateStringIsSortable(t *testing.T) {
	ids := make([]string, 0, 50)
	for i := 0; i < 50; i++ {
		ids = append(ids, GenerateString())
	}
	if !sort.StringsAreSorted(ids) {
		t.Fatalf("ids generated in sequence must sort lexicographically")
	}
	for _, id := range ids {
		if len(id) != 26 {
			t.Fatalf("unexpected length for %q", id)
		}
	}
}

func TestTimeRoundTrip(t *testing.T) {
	gen := NewGenerator(bytes.NewReader(bytes.Repeat([]byte{7}, 64)))
	at := time.UnixMilli(1_700_000_000_000)

	got, err := Time(gen.At(at).String())
	if err != nil {
		t.Fatalf("time: %v", err)
	}
	if !got.Equal(at) {
		t.Fatalf("timestamp not preserved: %v", got)
	}
	if _, err := Time("not-a-ulid"); err == nil {
		t.Fatalf("expected parse error")
	}
}
