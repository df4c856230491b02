package lofarcap

import "testing"

func baseConfig() Config {
	return Config{
		Ports:    []int{16011},
		Out:      "/tmp/test",
		BufSize:  1 << 20,
		MaxWrite: 65536,
	}
}

func TestValidateOK(t *testing.T) {
	c := baseConfig()
	if err := c.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateRejectsMixedStdin(t *testing.T) {
	c := baseConfig()
	c.Ports = []int{0, 16011}
	if err := c.Validate(); err == nil {
		t.Error("expected an error mixing stdin with other ports")
	}
}

func TestValidateCheckForcesPackLen(t *testing.T) {
	c := baseConfig()
	c.Check = true
	if err := c.Validate(); err != nil {
		t.Fatal(err)
	}
	if c.PackLen != CheckPackLen {
		t.Errorf("got PackLen=%d, want %d", c.PackLen, CheckPackLen)
	}
}

func TestValidateRejectsBadBufSize(t *testing.T) {
	c := baseConfig()
	c.BufSize = 1
	if err := c.Validate(); err == nil {
		t.Error("expected an error for an undersized bufsize")
	}
}

func TestValidateRejectsCompressWithoutCommand(t *testing.T) {
	c := baseConfig()
	c.Compress = true
	if err := c.Validate(); err == nil {
		t.Error("expected an error for --compress without --compcommand")
	}
}

func TestValidateRejectsBadCompCommand(t *testing.T) {
	c := baseConfig()
	c.Compress = true
	c.CompCommand = "gzip -c %s %s > out"
	if err := c.Validate(); err == nil {
		t.Error("expected an error for a command with more than one %s")
	}
}

func TestValidateRejectsDurationAndEnd(t *testing.T) {
	c := baseConfig()
	c.Duration = 10
	c.End = c.Start.Add(1)
	if err := c.Validate(); err == nil {
		t.Error("expected an error combining --duration and --End")
	}
}
