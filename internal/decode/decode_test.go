package decode_test

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/icco/pocketseq/internal/decode"
	"github.com/icco/pocketseq/internal/decode/decodetest"
)

func TestOpenWAVStereo(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "stereo.wav")
	const frames = 10000
	data := make([]int, frames*2)
	for i := 0; i < frames; i++ {
		data[2*i] = i % 3000
		data[2*i+1] = -(i % 3000)
	}
	decodetest.WriteWAV(t, path, 22050, 16, 2, data)

	s, err := decode.Default().Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	if s.SampleRate() != 22050 {
		t.Errorf("SampleRate = %d, want 22050", s.SampleRate())
	}
	if s.Length() != frames {
		t.Errorf("Length = %d, want %d", s.Length(), frames)
	}

	buf := make([]int16, 2*256)
	n, err := s.ReadStereo(buf)
	if err != nil || n != 256 {
		t.Fatalf("ReadStereo = %d, %v", n, err)
	}
	if buf[2*100] != 100 || buf[2*100+1] != -100 {
		t.Errorf("frame 100 = %d/%d, want 100/-100", buf[200], buf[201])
	}

	if err := s.Seek(5000); err != nil {
		t.Fatalf("Seek forward: %v", err)
	}
	s.ReadStereo(buf[:2])
	if buf[0] != 5000%3000 {
		t.Errorf("after Seek(5000) left = %d, want %d", buf[0], 5000%3000)
	}

	if err := s.Seek(7); err != nil {
		t.Fatalf("Seek backward: %v", err)
	}
	s.ReadStereo(buf[:2])
	if buf[0] != 7 {
		t.Errorf("after Seek(7) left = %d, want 7", buf[0])
	}

	if err := s.Seek(frames + 1); !errors.Is(err, decode.ErrSeekRange) {
		t.Errorf("Seek past end error = %v", err)
	}
}

func TestSeekBackwardsDoesNotAllocate(t *testing.T) {
	const frames = 3 * 44100
	path := filepath.Join(t.TempDir(), "long.wav")
	decodetest.WriteWAV(t, path, 44100, 16, 1, make([]int, frames))

	s, err := decode.Default().Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	buf := make([]int16, 2*1024)
	allocs := testing.AllocsPerRun(20, func() {
		s.Seek(frames - 2048)
		s.ReadStereo(buf)
		s.ReadStereo(buf)
		s.Seek(10)
		s.ReadStereo(buf)
	})
	if allocs != 0 {
		t.Errorf("seek and read allocated %v times per run", allocs)
	}
}

func TestOpenWAVMonoIsDuplicated(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "mono.wav")
	decodetest.WriteWAV(t, path, 8000, 16, 1, []int{10, 20, 30, 40})

	s, err := decode.Default().Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	buf := make([]int16, 16)
	n, err := s.ReadStereo(buf)
	if err != nil || n != 4 {
		t.Fatalf("ReadStereo = %d, %v", n, err)
	}
	want := []int16{10, 10, 20, 20, 30, 30, 40, 40}
	for i, w := range want {
		if buf[i] != w {
			t.Fatalf("samples = %v, want %v", buf[:8], want)
		}
	}

	if n, err := s.ReadStereo(buf); n != 0 || err != io.EOF {
		t.Errorf("ReadStereo at end = %d, %v; want 0, EOF", n, err)
	}
}

func TestRegistryErrors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	bogus := filepath.Join(dir, "noise.wav")
	if err := os.WriteFile(bogus, []byte("definitely not RIFF data"), 0600); err != nil {
		t.Fatalf("Error writing fixture: %v", err)
	}

	reg := decode.Default()
	tests := []struct {
		name string
		path string
		want error
	}{
		{"unknown extension", filepath.Join(dir, "song.flac"), decode.ErrUnsupportedFormat},
		{"garbage wav", bogus, decode.ErrNotValid},
		{"missing file", filepath.Join(dir, "missing.wav"), os.ErrNotExist},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := reg.Open(tt.path)
			if err == nil {
				s.Close()
				t.Fatal("Open succeeded")
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestRegistryExtensions(t *testing.T) {
	t.Parallel()

	reg := decode.Default()
	want := []string{".aif", ".aiff", ".mp3", ".ogg", ".wav"}
	got := reg.Extensions()
	if len(got) != len(want) {
		t.Fatalf("Extensions = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Extensions = %v, want %v", got, want)
		}
	}
	if !reg.Supports("/samples/Kick.WAV") {
		t.Error("Supports is case sensitive")
	}
	if reg.Supports("/samples/readme.txt") {
		t.Error("Supports accepted a text file")
	}
}

func TestMemoryStream(t *testing.T) {
	t.Parallel()

	s := decodetest.NewRamp(44100, 8)
	reg := decodetest.Registry(map[string]*decodetest.Stream{"ramp.mem": s})

	got, err := reg.Open("ramp.mem")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	buf := make([]int16, 6)
	got.Seek(5)
	if n, _ := got.ReadStereo(buf); n != 3 || buf[0] != 5 || buf[1] != -5 {
		t.Errorf("ReadStereo after Seek(5) = %d frames %v", n, buf)
	}
	got.Close()
	if s.Closed() != 1 {
		t.Errorf("Closed = %d, want 1", s.Closed())
	}
}
