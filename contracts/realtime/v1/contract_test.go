package v1

import (
	"testing"
	"time"
)

func TestEnvelopeValidate(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		env     Envelope
		wantErr bool
	}{
		{name: "ok", env: Envelope{V: Version, Type: TypeJoinPresentation}},
		{name: "missing version", env: Envelope{Type: TypeHello}, wantErr: true},
		{name: "wrong version", env: Envelope{V: "v2", Type: TypeHello}, wantErr: true},
		{name: "missing type", env: Envelope{V: Version}, wantErr: true},
		{name: "unknown type", env: Envelope{V: Version, Type: "control:rewind"}, wantErr: true},
	}

	for _, tc := range cases {
		err := tc.env.Validate()
		if (err != nil) != tc.wantErr {
			t.Fatalf("%s: Validate() err=%v wantErr=%v", tc.name, err, tc.wantErr)
		}
	}
}

func TestEncodeDecodeEvent_SlideChanged(t *testing.T) {
	t.Parallel()

	ts := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	in := SlideChangedEvent{
		PresentationID: "p-1",
		SlideID:        "s-2",
		SlideIndex:     2,
		Slide:          SlideSnapshot{ID: "s-2", Order: 2, Title: "Results"},
		Timestamp:      ts,
	}

	env, err := EncodeEvent(in, "env-1", ts)
	if err != nil {
		t.Fatalf("EncodeEvent: %v", err)
	}
	if env.Type != TypeSlideChanged || env.V != Version {
		t.Fatalf("unexpected envelope header: %+v", env)
	}

	out, err := DecodeEvent(env)
	if err != nil {
		t.Fatalf("DecodeEvent: %v", err)
	}
	got, ok := out.(SlideChangedEvent)
	if !ok {
		t.Fatalf("DecodeEvent returned %T", out)
	}
	if got.SlideIndex != 2 || got.Slide.Title != "Results" || !got.Timestamp.Equal(ts) {
		t.Fatalf("decoded event mismatch: %+v", got)
	}
}

func TestDecodeEvent_RejectsRequestTypes(t *testing.T) {
	t.Parallel()

	if _, err := DecodeEvent(Envelope{V: Version, Type: TypeJoinPresentation}); err == nil {
		t.Fatalf("expected error for non-event envelope")
	}
}

func TestIsControl(t *testing.T) {
	t.Parallel()

	for _, typ := range []string{TypeControlStart, TypeControlStop, TypeControlNextSlide, TypeControlPrevSlide, TypeControlGotoSlide} {
		if !IsControl(typ) {
			t.Fatalf("IsControl(%q)=false", typ)
		}
	}
	if IsControl(TypeJoinPresentation) {
		t.Fatalf("join must not be a control request")
	}
}
