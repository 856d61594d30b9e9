package gt06

import "testing"

func TestChecksum(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want uint16
	}{
		{
			name: "empty input",
			data: []byte{},
			want: 0x0000,
		},
		{
			name: "check value",
			data: []byte("123456789"),
			want: 0x906E,
		},
		{
			name: "login frame body",
			data: []byte{
				0x0D,                                           // Length
				0x01,                                           // Protocol (login)
				0x01, 0x23, 0x45, 0x67, 0x89, 0x01, 0x23, 0x45, // IMEI
				0x00, 0x01, // Serial
			},
			want: 0x8CDD,
		},
		{
			name: "login response body",
			data: []byte{0x05, 0x01, 0x00, 0x01},
			want: 0xD9DC,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Checksum(tt.data); got != tt.want {
				t.Errorf("Checksum() = 0x%04X, want 0x%04X", got, tt.want)
			}
		})
	}
}

func TestChecksumOrderSensitive(t *testing.T) {
	data := []byte{0x05, 0x01, 0x00, 0x01, 0x7F, 0x33}
	base := Checksum(data)

	for i := 0; i+1 < len(data); i++ {
		if data[i] == data[i+1] {
			continue
		}
		swapped := append([]byte(nil), data...)
		swapped[i], swapped[i+1] = swapped[i+1], swapped[i]
		if Checksum(swapped) == base {
			t.Errorf("swapping bytes %d and %d did not change the checksum", i, i+1)
		}
	}

	if Checksum(data) != base {
		t.Error("Checksum is not deterministic")
	}
}
