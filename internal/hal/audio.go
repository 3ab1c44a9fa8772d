package hal

import (
	"github.com/veandco/go-sdl2/sdl"
)

const (
	sampleFreq   = 22050
	beepFreq     = 440
	beepDuration = 6 // in 1/60 s
	beepSamples  = sampleFreq * beepDuration / 60
	beepVolume   = 48
)

// beeper plays a short square wave on the default output device.
type beeper struct {
	id   sdl.AudioDeviceID
	tone []uint8
}

func newBeeper() (*beeper, error) {
	spec := &sdl.AudioSpec{
		Freq:     sampleFreq,
		Format:   sdl.AUDIO_U8,
		Channels: 1,
		Samples:  512,
	}

	var actualSpec sdl.AudioSpec
	id, err := sdl.OpenAudioDevice("", false, spec, &actualSpec, 0)
	if err != nil {
		return nil, err
	}

	b := &beeper{
		id:   id,
		tone: squareWave(actualSpec.Silence, beepSamples),
	}
	sdl.PauseAudioDevice(id, false)

	return b, nil
}

func squareWave(silence uint8, n int) []uint8 {
	const halfPeriod = sampleFreq / beepFreq / 2

	tone := make([]uint8, n)
	for i := range tone {
		if (i/halfPeriod)%2 == 0 {
			tone[i] = silence + beepVolume
		} else {
			tone[i] = silence - beepVolume
		}
	}
	return tone
}

func (b *beeper) beep() error {
	// Don't pile up tones if the program beeps faster than they play.
	if sdl.GetQueuedAudioSize(b.id) > uint32(len(b.tone)) {
		return nil
	}
	return sdl.QueueAudio(b.id, b.tone)
}

func (b *beeper) close() {
	sdl.ClearQueuedAudio(b.id)
	sdl.CloseAudioDevice(b.id)
}
