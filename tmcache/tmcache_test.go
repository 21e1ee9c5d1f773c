package tmcache

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/libmemsource/mxkit/mxliff"
)

const translatedDoc = `<?xml version="1.0" encoding="UTF-8"?>
<xliff xmlns="urn:oasis:names:tc:xliff:document:1.2"><file original="a.docx" source-language="en" target-language="ja"><body><group>
<trans-unit id="1"><source>Hello</source><target>こんにちは</target></trans-unit>
<trans-unit id="2"><source>{1}</source><target>{1}</target></trans-unit>
<trans-unit id="3"><source>World</source><target></target></trans-unit>
<trans-unit id="4"><source>Tom &amp; Jerry</source><target>トム &amp; ジェリー</target></trans-unit>
</group></body></file></xliff>`

const pendingDoc = `<?xml version="1.0" encoding="UTF-8"?>
<xliff xmlns="urn:oasis:names:tc:xliff:document:1.2"><file original="b.docx" source-language="en" target-language="ja"><body><group>
<trans-unit id="1"><source>Hello</source><target>やあ</target></trans-unit>
<trans-unit id="2"><source>{1}</source><target></target></trans-unit>
<trans-unit id="3"><source>World</source><target></target></trans-unit>
<trans-unit id="4"><source>Tom &amp; Jerry</source><target/></trans-unit>
</group></body></file></xliff>`

func openCache(t *testing.T) *Cache {
	t.Helper()
	c, err := Open(filepath.Join(t.TempDir(), "nested", "tm.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func parse(t *testing.T, doc string) *mxliff.Document {
	t.Helper()
	d, err := mxliff.Parse([]byte(doc))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return d
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tm.db")
	ctx := context.Background()

	c, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := c.Put(ctx, Entry{SourceLang: "en", TargetLang: "de", SourceText: "a", TargetText: "b"}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	c.Close()

	c, err = Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer c.Close()
	n, err := c.Count(ctx)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 1 {
		t.Errorf("Count after reopen = %d, want 1", n)
	}
}

func TestPutAndGet(t *testing.T) {
	c := openCache(t)
	ctx := context.Background()

	e, err := c.Get(ctx, "en", "de", "Hello")
	if err != nil || e != nil {
		t.Fatalf("Get on empty memory = %v, %v; want nil, nil", e, err)
	}

	for _, tgt := range []string{"Hallo", "Servus"} {
		err := c.Put(ctx, Entry{SourceLang: "en", TargetLang: "de", SourceText: "Hello", TargetText: tgt, Origin: "x.docx"})
		if err != nil {
			t.Fatalf("Put: %v", err)
		}
	}

	e, err = c.Get(ctx, "en", "de", "Hello")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if e == nil || e.TargetText != "Servus" || e.Origin != "x.docx" {
		t.Fatalf("Get = %+v, want upserted Servus", e)
	}
	if e.UpdatedAt.IsZero() {
		t.Error("UpdatedAt not set")
	}

	// Pairs are scoped by language.
	if e, _ := c.Get(ctx, "en", "fr", "Hello"); e != nil {
		t.Errorf("Get(en, fr) = %+v, want nil", e)
	}
	if n, _ := c.Count(ctx); n != 1 {
		t.Errorf("Count = %d, want 1", n)
	}
}

func TestHarvestAndFill(t *testing.T) {
	c := openCache(t)
	ctx := context.Background()

	n, err := c.Harvest(ctx, parse(t, translatedDoc))
	if err != nil {
		t.Fatalf("Harvest: %v", err)
	}
	if n != 2 {
		t.Fatalf("Harvest stored %d pairs, want 2", n)
	}

	d := parse(t, pendingDoc)
	filled, err := c.Fill(ctx, d)
	if err != nil {
		t.Fatalf("Fill: %v", err)
	}
	if filled != 1 {
		t.Fatalf("Fill = %d, want 1", filled)
	}

	got := map[string]string{}
	for _, u := range d.Units() {
		got[u.ID] = u.Target.Text
	}
	want := map[string]string{
		"1": "やあ",
		"2": "",
		"3": "",
		"4": "トム &amp; ジェリー",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("targets after Fill: diff (-want +got):\n%s", diff)
	}
	if u := d.Unit("b.docx", "4"); !u.Processed {
		t.Error("filled unit should be marked processed")
	}
	if u := d.Unit("b.docx", "1"); u.Processed {
		t.Error("translated unit should be left alone")
	}

	out, err := d.Marshal()
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if !strings.Contains(string(out), "<target>トム &amp; ジェリー</target>") {
		t.Errorf("filled target not written:\n%s", out)
	}
}
