package blob

import "testing"

func TestCleanKey(t *testing.T) {
	valid := map[string]string{
		"assets/1/a.jpg":      "assets/1/a.jpg",
		"movements/2//b.png":  "movements/2/b.png",
		"assets/./3/c.webp":   "assets/3/c.webp",
		"assets/x/../4/d.jpg": "assets/4/d.jpg",
	}
	for in, want := range valid {
		got, err := CleanKey(in)
		if err != nil || got != want {
			t.Errorf("CleanKey(%q) = %q, %v; want %q", in, got, err, want)
		}
	}

	for _, in := range []string{"", " ", "/etc/passwd", "../secret", "a/../../b", "..", `a\b`} {
		if _, err := CleanKey(in); err == nil {
			t.Errorf("CleanKey(%q): expected error", in)
		}
	}
}
