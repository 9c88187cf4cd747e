package tts

/*
#cgo LDFLAGS: -lespeak-ng
#include <stdlib.h>
#include <espeak-ng/speak_lib.h>

static int
eva_speak(const char *text, const char *voice, int rate)
{
	if (!text)
	{ return -1; }

	if (espeak_Initialize(AUDIO_OUTPUT_SYNCH_PLAYBACK, 500, NULL, 0) < 0)
	{ return -2; }

	if (voice && espeak_SetVoiceByName(voice) != EE_OK)
	{
		espeak_VOICE specs = { .languages = "en" };
		espeak_SetVoiceByProperties(&specs);
	}
	if (rate > 0)
	{ espeak_SetParameter(espeakRATE, rate, 0); }

	espeak_Synth(text, 0, 0, POS_CHARACTER, 0, espeakCHARS_AUTO, NULL, NULL);
	espeak_Synchronize();
	espeak_Terminate();

	return 0;
}

static int
eva_probe(const char *voice)
{
	if (espeak_Initialize(AUDIO_OUTPUT_RETRIEVAL, 0, NULL, 0) < 0)
	{ return -2; }

	int rc = 0;
	if (voice && espeak_SetVoiceByName(voice) != EE_OK)
	{ rc = -3; }

	espeak_Terminate();
	return rc;
}
*/
import "C"

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"unsafe"
)

// engine serialises use of the library's global state.
var engine sync.Mutex

// Espeak speaks through libespeak-ng. Utterances are played one at a time.
type Espeak struct {
	voice string
	rate  int
}

func NewEspeak(voice string, rate int) *Espeak {
	return &Espeak{voice: voice, rate: rate}
}

func (e *Espeak) Speak(ctx context.Context, text string) error {
	if text == "" {
		return nil
	}

	engine.Lock()
	defer engine.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	ctext := C.CString(text)
	defer C.free(unsafe.Pointer(ctext))

	var cvoice *C.char
	if e.voice != "" {
		cvoice = C.CString(e.voice)
		defer C.free(unsafe.Pointer(cvoice))
	}

	if rc := C.eva_speak(ctext, cvoice, C.int(e.rate)); rc != 0 {
		return fmt.Errorf("espeak failed: %d", int(rc))
	}
	return nil
}

// Probe loads libespeak-ng without an audio device and checks that voice
// exists. An empty voice only checks that the library initialises.
func Probe(voice string) error {
	engine.Lock()
	defer engine.Unlock()

	var cvoice *C.char
	if voice != "" {
		cvoice = C.CString(voice)
		defer C.free(unsafe.Pointer(cvoice))
	}

	switch rc := C.eva_probe(cvoice); rc {
	case 0:
		return nil
	case -2:
		return errors.New("espeak-ng data not found")
	case -3:
		return fmt.Errorf("espeak-ng has no voice %q", voice)
	default:
		return fmt.Errorf("espeak probe failed: %d", int(rc))
	}
}
