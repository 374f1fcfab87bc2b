package domain

import "testing"

func TestParseLabels(t *testing.T) {
	light := []struct {
		raw  string
		want LightLevel
		ok   bool
	}{
		{"low", LightLow, true},
		{"Alta", LightHigh, true},
		{" média ", LightMedium, true},
		{"MEDIA", LightMedium, true},
		{"desconhecida", LightUnknown, true},
		{"dim", "", false},
		{"", "", false},
	}
	for _, tt := range light {
		got, ok := ParseLightLevel(tt.raw)
		if got != tt.want || ok != tt.ok {
			t.Fatalf("ParseLightLevel(%q)=(%s,%v) want (%s,%v)", tt.raw, got, ok, tt.want, tt.ok)
		}
	}

	users := []struct {
		raw  string
		want UserState
		ok   bool
	}{
		{"tired", UserStateTired, true},
		{"Cansado", UserStateTired, true},
		{"\tagitado\n", UserStateAgitated, true},
		{"NORMAL", UserStateNormal, true},
		{"bored", "", false},
	}
	for _, tt := range users {
		got, ok := ParseUserState(tt.raw)
		if got != tt.want || ok != tt.ok {
			t.Fatalf("ParseUserState(%q)=(%s,%v) want (%s,%v)", tt.raw, got, ok, tt.want, tt.ok)
		}
	}

	envs := []struct {
		raw  string
		want Environment
		ok   bool
	}{
		{"quiet", EnvironmentQuiet, true},
		{"Barulhento", EnvironmentNoisy, true},
		{" silencioso", EnvironmentQuiet, true},
		{"desconhecido", EnvironmentUnknown, true},
		{"echoing", "", false},
	}
	for _, tt := range envs {
		got, ok := ParseEnvironment(tt.raw)
		if got != tt.want || ok != tt.ok {
			t.Fatalf("ParseEnvironment(%q)=(%s,%v) want (%s,%v)", tt.raw, got, ok, tt.want, tt.ok)
		}
	}

	interactions := []struct {
		raw  string
		want InteractionKind
		ok   bool
	}{
		{"positive", InteractionPositive, true},
		{"Positiva", InteractionPositive, true},
		{" negativa ", InteractionNegative, true},
		{"IGNORADA", InteractionIgnored, true},
		{"normal", InteractionNormal, true},
		{"positivo", "", false},
	}
	for _, tt := range interactions {
		got, ok := ParseInteractionKind(tt.raw)
		if got != tt.want || ok != tt.ok {
			t.Fatalf("ParseInteractionKind(%q)=(%s,%v) want (%s,%v)", tt.raw, got, ok, tt.want, tt.ok)
		}
	}
}

func TestSnapshotNormalized(t *testing.T) {
	tests := []struct {
		name string
		in   SituationalSnapshot
		want SituationalSnapshot
	}{
		{
			name: "zero value",
			in:   SituationalSnapshot{},
			want: SituationalSnapshot{Light: LightUnknown, UserState: UserStateUnknown, Environment: EnvironmentUnknown},
		},
		{
			name: "unrecognized values",
			in:   SituationalSnapshot{Light: "blinding", UserState: "hungry", Environment: "echoing", UserPresent: true},
			want: SituationalSnapshot{Light: LightUnknown, UserState: UserStateUnknown, Environment: EnvironmentUnknown, UserPresent: true},
		},
		{
			name: "valid values kept",
			in:   SituationalSnapshot{Clock: "08:00", Light: LightHigh, UserState: UserStateTired, Environment: EnvironmentNoisy, RecentInteraction: true},
			want: SituationalSnapshot{Clock: "08:00", Light: LightHigh, UserState: UserStateTired, Environment: EnvironmentNoisy, RecentInteraction: true},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.in.Normalized(); got != tt.want {
				t.Fatalf("got=%+v want=%+v", got, tt.want)
			}
		})
	}
}

func TestLightFromBrightness(t *testing.T) {
	tests := []struct {
		mean float64
		want LightLevel
	}{
		{0, LightLow},
		{49.9, LightLow},
		{50, LightMedium},
		{149, LightMedium},
		{150, LightHigh},
		{255, LightHigh},
	}
	for _, tt := range tests {
		if got := LightFromBrightness(tt.mean); got != tt.want {
			t.Fatalf("LightFromBrightness(%v)=%s want %s", tt.mean, got, tt.want)
		}
	}
}
