package refs

import (
	"reflect"
	"testing"

	"github.com/lecternlabs/lectern/internal/models"
)

func TestCollectPageContent(t *testing.T) {
	p := &models.Project{
		Name: "talk",
		Pages: []models.Page{
			{Content: `\includegraphics{fig1.png}`},
			{Content: `\includegraphics[width=2cm]{fig1.png}`},
			{Content: `no references`},
		},
	}

	usage := Collect(p)
	u, ok := usage["fig1.png"]
	if !ok {
		t.Fatalf("fig1.png missing, usage keys = %v", keys(usage))
	}
	if got := u.PageIndices(); !reflect.DeepEqual(got, []int{0, 1}) {
		t.Errorf("pages = %v, want [0 1]", got)
	}
	if u.Global {
		t.Error("page-only reference marked global")
	}
}

func TestCollectAttachesBasenameToStoredPath(t *testing.T) {
	p := &models.Project{
		Name:      "talk",
		Resources: []string{"figures/plot.png"},
		Pages: []models.Page{
			{Content: `\includegraphics{plot.png}`},
		},
	}

	usage := Collect(p)
	u, ok := usage["figures/plot.png"]
	if !ok {
		t.Fatalf("stored path missing, usage keys = %v", keys(usage))
	}
	if _, scanned := u.Pages[0]; !scanned {
		t.Error("scanned basename did not attach to stored path")
	}
	if !u.Global {
		t.Error("global resources listing not recorded")
	}
	if _, dup := usage["plot.png"]; dup {
		t.Error("basename recorded as separate key despite stored path")
	}
}

func TestCollectScansAllFields(t *testing.T) {
	p := &models.Project{
		Name: "talk",
		Pages: []models.Page{{
			Content: `\img{a.png}`,
			Script:  `see [chart](b.png)`,
			Notes:   `<img src="c.png">`,
			Bib:     []string{`@misc{x, note={\url{https://example.com/paper.pdf}}}`},
		}},
		Template: models.Template{Header: `\includegraphics{logo.png}`},
		Bib:      []string{`see \href{global.pdf}`},
	}

	usage := Collect(p)
	for _, want := range []string{"a.png", "b.png", "c.png", "paper.pdf", "logo.png", "global.pdf"} {
		if _, ok := usage[want]; !ok {
			t.Errorf("%s missing, usage keys = %v", want, keys(usage))
		}
	}
	if !usage["logo.png"].Global {
		t.Error("template reference should be global")
	}
	if usage["a.png"].Global {
		t.Error("page reference should not be global")
	}
}

func TestCollectContexts(t *testing.T) {
	p := &models.Project{
		Name:      "talk",
		Resources: []string{"plot.png"},
		Pages: []models.Page{{
			Content: `\includegraphics{plot.png}`,
			Notes:   `also [here](plot.png)`,
		}},
	}

	usage := Collect(p)
	u := usage["plot.png"]
	if u == nil {
		t.Fatal("plot.png missing")
	}
	want := []string{"global resources", "page 1 content", "page 1 notes"}
	if !reflect.DeepEqual(u.Contexts, want) {
		t.Errorf("contexts = %v, want %v", u.Contexts, want)
	}
}

func TestLookup(t *testing.T) {
	p := &models.Project{
		Name:      "talk",
		Resources: []string{"figures/plot.png"},
	}
	usage := Collect(p)

	if Lookup(usage, "figures/plot.png") == nil {
		t.Error("exact path lookup failed")
	}
	if Lookup(usage, "figures//plot.png") == nil {
		t.Error("unsanitized path lookup failed")
	}
	if Lookup(usage, "missing.png") != nil {
		t.Error("missing path should return nil")
	}
	if Lookup(usage, "") != nil {
		t.Error("empty path should return nil")
	}
}

func TestNormalizeTarget(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"plot.png", "plot.png"},
		{"figures/plot.png", "plot.png"},
		{"https://cdn.example.com/a/b/plot.png?v=2", "plot.png"},
		{"plot.png#sec", "plot.png"},
		{`dir\plot.png`, "plot.png"},
		{"  ", ""},
	}
	for _, tt := range tests {
		if got := normalizeTarget(tt.in); got != tt.want {
			t.Errorf("normalizeTarget(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func keys(m map[string]*Usage) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
