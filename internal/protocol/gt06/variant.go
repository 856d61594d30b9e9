package gt06

import "encoding/binary"

// Variant tags a manufacturer specific layout sharing a standard message type
type Variant string

const (
	VariantStandard  Variant = "standard"
	VariantVXT01     Variant = "vxt01"
	VariantWanwayS20 Variant = "wanway_s20"
	VariantSR411Mini Variant = "sr411_mini"
	VariantGT06ECard Variant = "gt06e_card"
	VariantBenway    Variant = "benway"
	VariantS5        Variant = "s5"
	VariantSpace10X  Variant = "space10x"
	VariantOBD6      Variant = "obd6"
	VariantWetrust   Variant = "wetrust"
	VariantJC400     Variant = "jc400"
	VariantSL4X      Variant = "sl4x"
	VariantSeeworld  Variant = "seeworld"
	VariantRFID      Variant = "rfid"
	VariantLW4G      Variant = "lw4g"
)

type variantRule struct {
	header  uint16
	msgType byte
	// declared length bounds, inclusive; zero max means unbounded
	minLength int
	maxLength int
	// probe inspects the payload when length alone is not decisive
	probe   func(payload []byte) bool
	variant Variant
}

func exactly(header uint16, msgType byte, length int, v Variant) variantRule {
	return variantRule{header: header, msgType: msgType, minLength: length, maxLength: length, variant: v}
}

func atLeast(header uint16, msgType byte, length int, v Variant) variantRule {
	return variantRule{header: header, msgType: msgType, minLength: length, variant: v}
}

// variantRules is evaluated in order; the first match wins.
var variantRules = []variantRule{
	exactly(HeaderBasic, MsgGPSLBS1, 0x24, VariantVXT01),
	exactly(HeaderBasic, MsgGPSLBSStatus1, 0x24, VariantVXT01),
	exactly(HeaderBasic, MsgLBSMultiple3, 0x31, VariantWanwayS20),
	exactly(HeaderBasic, MsgLBSMultiple3, 0x2E, VariantSR411Mini),
	atLeast(HeaderBasic, MsgGPSLBS1, 0x71, VariantGT06ECard),
	exactly(HeaderBasic, MsgGPSLBS1, 0x21, VariantBenway),
	exactly(HeaderBasic, MsgGPSLBS1, 0x2B, VariantS5),
	atLeast(HeaderBasic, MsgLBSStatus, 0x17, VariantSpace10X),
	exactly(HeaderBasic, MsgStatus, 0x13, VariantOBD6),
	exactly(HeaderBasic, MsgGPSLBS1, 0x29, VariantWetrust),
	{header: HeaderBasic, msgType: MsgAlarm, probe: leadingWordIs(0xFFFF), variant: VariantJC400},
	exactly(HeaderBasic, MsgGPSLBS5, 0x37, VariantSL4X),
	exactly(HeaderBasic, MsgGPSLBS2, 0x2F, VariantSeeworld),
	exactly(HeaderBasic, MsgGPSLBSStatus1, 0x26, VariantSeeworld),
	exactly(HeaderBasic, MsgWifi, 0x28, VariantRFID),
	exactly(HeaderBasic, MsgGPSLBSStatus5, 0x40, VariantLW4G),
}

func leadingWordIs(word uint16) func([]byte) bool {
	return func(payload []byte) bool {
		return len(payload) >= 2 && binary.BigEndian.Uint16(payload) == word
	}
}

func (r *variantRule) matches(header uint16, msgType byte, length int, payload []byte) bool {
	if r.header != header || r.msgType != msgType {
		return false
	}
	if length < r.minLength || (r.maxLength > 0 && length > r.maxLength) {
		return false
	}
	return r.probe == nil || r.probe(payload)
}

// Classify infers the device variant from the frame header, message type and declared length
func Classify(header uint16, msgType byte, length int, payload []byte) Variant {
	for i := range variantRules {
		if variantRules[i].matches(header, msgType, length, payload) {
			return variantRules[i].variant
		}
	}
	return VariantStandard
}
