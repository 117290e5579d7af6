// Package hw is the unit's view of its GPIO lines. Concrete pin drivers are
// provided by the board support layer; SimBank backs tests and bench runs.
package hw

// InputPin reads the level of one GPIO line.
type InputPin interface {
	Read() bool
}

// OutputPin drives one GPIO line.
type OutputPin interface {
	Write(high bool) error
}

// Bank hands out pins by board number.
type Bank interface {
	Input(pin int) InputPin
	Output(pin int) OutputPin
}

// Pins is the board wiring of one unit.
type Pins struct {
	Relay1       int `yaml:"relay1"`
	Relay2       int `yaml:"relay2"`
	Monitor1     int `yaml:"monitor1"`
	Monitor2     int `yaml:"monitor2"`
	OpenButton1  int `yaml:"open_button1"`
	OpenButton2  int `yaml:"open_button2"`
	ConfigButton int `yaml:"config_button"`
	LEDRed       int `yaml:"led_red"`
	LEDGreen     int `yaml:"led_green"`
	LEDBlue      int `yaml:"led_blue"`
	// Wiegand reader feedback lines, indexed by reader id - 1.
	WiegandRed    []int `yaml:"wiegand_red"`
	WiegandGreen  []int `yaml:"wiegand_green"`
	WiegandBuzzer []int `yaml:"wiegand_buzzer"`
}

// DefaultPins matches the reference carrier board.
func DefaultPins() Pins {
	return Pins{
		Relay1:        17,
		Relay2:        27,
		Monitor1:      5,
		Monitor2:      6,
		OpenButton1:   13,
		OpenButton2:   19,
		ConfigButton:  26,
		LEDRed:        16,
		LEDGreen:      20,
		LEDBlue:       21,
		WiegandRed:    []int{22, 24},
		WiegandGreen:  []int{23, 25},
		WiegandBuzzer: []int{12, 18},
	}
}
