package refresh

import "testing"

func TestSelect(t *testing.T) {
	fg := Inputs{
		TabVisible:       true,
		AppForeground:    true,
		ReduceInLowPower: true,
		RateOnAC:         60,
		RateOnBattery:    30,
		DisplayMax:       120,
	}

	tests := []struct {
		name   string
		modify func(*Inputs)
		want   int
	}{
		{"foreground on AC", func(*Inputs) {}, 60},
		{"foreground on battery", func(in *Inputs) { in.OnBattery = true }, 30},
		{"capped at display max", func(in *Inputs) { in.RateOnAC = 240 }, 120},
		{"unknown display max", func(in *Inputs) { in.RateOnAC = 240; in.DisplayMax = 0 }, 240},
		{"unset rate uses default", func(in *Inputs) { in.RateOnAC = 0 }, DefaultRate},
		{"low power with preference", func(in *Inputs) { in.LowPower = true }, LowPowerRate},
		{"low power without preference", func(in *Inputs) { in.LowPower = true; in.ReduceInLowPower = false }, 60},
		{"tab hidden", func(in *Inputs) { in.TabVisible = false }, MinimumRate},
		{"tab hidden beats low power", func(in *Inputs) { in.TabVisible = false; in.LowPower = true }, MinimumRate},
		{"background multi window", func(in *Inputs) { in.AppForeground = false; in.MultiWindow = true }, BackgroundMultiWindowRate},
		{"background single window", func(in *Inputs) { in.AppForeground = false }, MinimumRate},
		{"background hidden tab", func(in *Inputs) {
			in.AppForeground = false
			in.MultiWindow = true
			in.TabVisible = false
		}, MinimumRate},
		{"tiny display max still ticks", func(in *Inputs) { in.DisplayMax = -1; in.RateOnAC = 1 }, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := fg
			tt.modify(&in)
			if got := Select(in); got != tt.want {
				t.Errorf("Select() = %d, want %d", got, tt.want)
			}
		})
	}
}
