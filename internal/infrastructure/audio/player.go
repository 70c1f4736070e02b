// Package audio reproduce en el dispositivo del host el mp3 que devuelven los
// proveedores de TTS.
package audio

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/hajimehoshi/go-mp3"
	"github.com/hajimehoshi/oto/v2"
)

const (
	DefaultSampleRate = 44100

	channelCount   = 2
	bytesPerSample = 2
	frameSize      = channelCount * bytesPerSample
)

// Player usa un único contexto de oto para todo el proceso; el audio con otra
// frecuencia de muestreo se remuestrea antes de reproducirse.
type Player struct {
	sampleRate int

	once    sync.Once
	otoCtx  *oto.Context
	initErr error

	mu sync.Mutex
}

func NewPlayer(sampleRate int) *Player {
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	return &Player{sampleRate: sampleRate}
}

func (p *Player) context() (*oto.Context, error) {
	p.once.Do(func() {
		otoCtx, ready, err := oto.NewContext(p.sampleRate, channelCount, bytesPerSample)
		if err != nil {
			p.initErr = fmt.Errorf("oto context: %w", err)
			return
		}
		<-ready
		p.otoCtx = otoCtx
	})
	return p.otoCtx, p.initErr
}

func (p *Player) Play(ctx context.Context, audio []byte, volume float64) error {
	pcm, rate, err := Decode(audio)
	if err != nil {
		return err
	}
	if rate != p.sampleRate {
		pcm = Resample(pcm, rate, p.sampleRate)
	}

	otoCtx, err := p.context()
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	player := otoCtx.NewPlayer(bytes.NewReader(pcm))
	defer player.Close()
	player.SetVolume(volume)
	player.Play()

	ticker := time.NewTicker(15 * time.Millisecond)
	defer ticker.Stop()

	for player.IsPlaying() {
		select {
		case <-ctx.Done():
			player.Pause()
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return player.Err()
}

// Decode devuelve PCM estéreo de 16 bits little-endian y su frecuencia de muestreo.
func Decode(audio []byte) ([]byte, int, error) {
	if len(audio) == 0 {
		return nil, 0, fmt.Errorf("audio vacío")
	}
	decoder, err := mp3.NewDecoder(bytes.NewReader(audio))
	if err != nil {
		return nil, 0, fmt.Errorf("mp3 decoder: %w", err)
	}
	pcm, err := io.ReadAll(decoder)
	if err != nil {
		return nil, 0, fmt.Errorf("mp3 decode: %w", err)
	}
	return pcm, decoder.SampleRate(), nil
}

// Resample convierte PCM estéreo de 16 bits entre frecuencias por interpolación lineal.
func Resample(pcm []byte, from, to int) []byte {
	if from <= 0 || to <= 0 || from == to || len(pcm) < frameSize {
		return pcm
	}
	inFrames := len(pcm) / frameSize
	outFrames := int(int64(inFrames) * int64(to) / int64(from))
	if outFrames == 0 {
		return nil
	}
	out := make([]byte, outFrames*frameSize)
	step := float64(from) / float64(to)

	for i := 0; i < outFrames; i++ {
		pos := float64(i) * step
		idx := int(pos)
		frac := pos - float64(idx)
		next := idx + 1
		if next >= inFrames {
			next = inFrames - 1
		}
		for ch := 0; ch < channelCount; ch++ {
			a := sampleAt(pcm, idx, ch)
			b := sampleAt(pcm, next, ch)
			v := float64(a) + (float64(b)-float64(a))*frac
			putSample(out, i, ch, int16(v))
		}
	}
	return out
}

// Duration estima cuánto dura un mp3 sin reproducirlo.
func Duration(audio []byte) (time.Duration, error) {
	pcm, rate, err := Decode(audio)
	if err != nil {
		return 0, err
	}
	frames := len(pcm) / frameSize
	return time.Duration(frames) * time.Second / time.Duration(rate), nil
}

func sampleAt(pcm []byte, frame, ch int) int16 {
	off := frame*frameSize + ch*bytesPerSample
	return int16(uint16(pcm[off]) | uint16(pcm[off+1])<<8)
}

func putSample(pcm []byte, frame, ch int, v int16) {
	off := frame*frameSize + ch*bytesPerSample
	pcm[off] = byte(uint16(v))
	pcm[off+1] = byte(uint16(v) >> 8)
}

// SilentPlayer no usa el dispositivo de audio: espera lo que dura el anuncio
// para que los navegadores conectados lo reproduzcan en orden.
type SilentPlayer struct{}

func (SilentPlayer) Play(ctx context.Context, audio []byte, _ float64) error {
	d, err := Duration(audio)
	if err != nil {
		return err
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
