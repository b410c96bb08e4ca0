package dom

import "testing"

func TestParseFragmentRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"simple", `<div id='x'>ok</div>`, `<div id="x">ok</div>`},
		{"void", `<p>a<br>b</p>`, `<p>a<br>b</p>`},
		{"script_raw", `<script>if (a < b) {}</script>`, `<script>if (a < b) {}</script>`},
		{"escaped_attr", `<a title="x &quot;y&quot;">t</a>`, `<a title="x &quot;y&quot;">t</a>`},
		{"siblings", `<i>1</i><i>2</i>`, `<i>1</i><i>2</i>`},
		{"comment", `<!-- c --><b></b>`, `<!-- c --><b></b>`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			frag, err := ParseFragment(tc.in)
			if err != nil {
				t.Fatalf("ParseFragment() error = %v", err)
			}
			if got := frag.HTML(); got != tc.want {
				t.Errorf("HTML() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestInsert(t *testing.T) {
	tests := []struct {
		where Where
		want  string
	}{
		{Replace, `<div id="t"><b>new</b></div>`},
		{AfterBegin, `<div id="t"><b>new</b><i>old</i></div>`},
		{BeforeEnd, `<div id="t"><i>old</i><b>new</b></div>`},
		{BeforeBegin, `<b>new</b><div id="t"><i>old</i></div>`},
		{AfterEnd, `<div id="t"><i>old</i></div><b>new</b>`},
	}

	for _, tc := range tests {
		t.Run(tc.where.String(), func(t *testing.T) {
			root := MustParseFragment(`<div id="t"><i>old</i></div>`)
			wrapper := Element("section", nil, root)
			target := wrapper.ByID("t")

			inserted, err := Insert(target, MustParseFragment(`<b>new</b>`), tc.where)
			if err != nil {
				t.Fatalf("Insert() error = %v", err)
			}
			if len(inserted) != 1 || inserted[0].Tag != "b" {
				t.Fatalf("inserted = %v", inserted)
			}
			if got := wrapper.InnerHTML(); got != tc.want {
				t.Errorf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestInsertSiblingWithoutParent(t *testing.T) {
	root := Element("div", nil)
	if _, err := Insert(root, MustParseFragment(`<b></b>`), AfterEnd); err != ErrNoParent {
		t.Errorf("Insert() error = %v, want ErrNoParent", err)
	}
}

func TestParseWhere(t *testing.T) {
	for _, w := range []Where{Replace, BeforeBegin, AfterBegin, BeforeEnd, AfterEnd} {
		got, err := ParseWhere(w.String())
		if err != nil || got != w {
			t.Errorf("ParseWhere(%q) = %v, %v", w.String(), got, err)
		}
	}
	if _, err := ParseWhere("sideways"); err == nil {
		t.Error("ParseWhere(sideways) error = nil")
	}
}

func TestEscapeSelector(t *testing.T) {
	tests := map[string]string{
		"plain":    "plain",
		"a.b":      `a\.b`,
		"x:y[0]":   `x\:y\[0\]`,
		"":         "",
		"héllo#1": `héllo\#1`,
	}
	for in, want := range tests {
		if got := EscapeSelector(in); got != want {
			t.Errorf("EscapeSelector(%q) = %q, want %q", in, got, want)
		}
	}
}
