package enums

import "fmt"

// Processor names the external payment service that owns a customer record.
type Processor string

const (
	ProcessorStripe    Processor = "stripe"
	ProcessorBraintree Processor = "braintree"
	ProcessorPaddle    Processor = "paddle"
	ProcessorFake      Processor = "fake_processor"
)

var validProcessors = []Processor{
	ProcessorStripe,
	ProcessorBraintree,
	ProcessorPaddle,
	ProcessorFake,
}

// String implements fmt.Stringer.
func (p Processor) String() string {
	return string(p)
}

// IsValid reports whether the value is known.
func (p Processor) IsValid() bool {
	for _, candidate := range validProcessors {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParseProcessor converts raw input into a Processor.
func ParseProcessor(value string) (Processor, error) {
	for _, candidate := range validProcessors {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid processor %q", value)
}
