package cli

import (
	"path/filepath"
	"testing"
)

func TestLoad_NoPDFFlagHonoursValue(t *testing.T) {
	t.Parallel()
	cases := []struct {
		args []string
		want bool
	}{
		{nil, true},
		{[]string{"--no-pdf"}, false},
		{[]string{"--no-pdf=true"}, false},
		{[]string{"--no-pdf=false"}, true},
	}
	for _, tc := range cases {
		opts := &rootOptions{envFiles: []string{filepath.Join(t.TempDir(), "missing.env")}}
		cmd := newServeCommand(opts)
		if err := cmd.ParseFlags(tc.args); err != nil {
			t.Fatalf("%v: parse: %v", tc.args, err)
		}
		cfg, err := opts.load(cmd)
		if err != nil {
			t.Fatalf("%v: load: %v", tc.args, err)
		}
		if cfg.PDFEnabled != tc.want {
			t.Errorf("%v: PDFEnabled = %v, want %v", tc.args, cfg.PDFEnabled, tc.want)
		}
	}
}

func TestLoad_ListenFlagOverridesDefault(t *testing.T) {
	t.Parallel()
	opts := &rootOptions{envFiles: []string{filepath.Join(t.TempDir(), "missing.env")}}
	cmd := newServeCommand(opts)
	if err := cmd.ParseFlags([]string{"--listen", "127.0.0.1:9999"}); err != nil {
		t.Fatal(err)
	}
	cfg, err := opts.load(cmd)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.ListenAddr != "127.0.0.1:9999" {
		t.Errorf("ListenAddr = %q", cfg.ListenAddr)
	}
}
