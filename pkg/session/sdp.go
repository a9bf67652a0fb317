package session

import (
	"encoding/base64"
	"fmt"

	psdp "github.com/pion/sdp/v3"
)

// BuildAnnounceSDP renders the AP1 ANNOUNCE body: an SDP description
// carrying codec parameters, the RSA-OAEP-encrypted AES key (`rsaaeskey`)
// and IV (`aesiv`).
func BuildAnnounceSDP(localAddr string, params AnnounceParams, encryptedAESKey []byte) ([]byte, error) {
	desc := &psdp.SessionDescription{
		Version: 0,
		Origin: psdp.Origin{
			Username:       "-",
			SessionID:      0,
			SessionVersion: 0,
			NetworkType:    "IN",
			AddressType:    "IP4",
			UnicastAddress: localAddr,
		},
		SessionName: "AirTunes",
		ConnectionInformation: &psdp.ConnectionInformation{
			NetworkType: "IN",
			AddressType: "IP4",
			Address:     &psdp.Address{Address: localAddr},
		},
		TimeDescriptions: []psdp.TimeDescription{{Timing: psdp.Timing{StartTime: 0, StopTime: 0}}},
		MediaDescriptions: []*psdp.MediaDescription{
			{
				MediaName: psdp.MediaName{
					Media:   "audio",
					Port:    psdp.RangedPort{Value: 0},
					Protos:  []string{"RTP", "AVP", "96"},
					Formats: []string{"96"},
				},
				Attributes: []psdp.Attribute{
					{Key: "rtpmap", Value: fmt.Sprintf("96 AppleLossless")},
					{Key: "fmtp", Value: buildFmtpLine(params)},
					{Key: "rsaaeskey", Value: base64.StdEncoding.EncodeToString(encryptedAESKey)},
					{Key: "aesiv", Value: base64.StdEncoding.EncodeToString(params.AESIV)},
				},
			},
		},
	}
	return desc.Marshal()
}

// buildFmtpLine renders the ALAC fmtp parameter line describing frame
// size, sample size, channels, and sample rate, in the conventional
// AirTunes ordering.
func buildFmtpLine(params AnnounceParams) string {
	return fmt.Sprintf("96 352 0 %d 40 10 14 2 255 0 0 %d",
		params.SampleSize, params.SampleRate)
}

// ParseAnnounceSDP extracts the rsaaeskey/aesiv attributes and codec
// parameters from an ANNOUNCE body. It returns the
// still-RSA-encrypted AES key.
func ParseAnnounceSDP(body []byte) (encryptedAESKey, iv []byte, params AnnounceParams, err error) {
	var desc psdp.SessionDescription
	if err = desc.Unmarshal(body); err != nil {
		return nil, nil, AnnounceParams{}, fmt.Errorf("session: parse ANNOUNCE SDP: %w", err)
	}
	if len(desc.MediaDescriptions) == 0 {
		return nil, nil, AnnounceParams{}, fmt.Errorf("session: ANNOUNCE SDP has no media sections")
	}
	md := desc.MediaDescriptions[0]
	for _, a := range md.Attributes {
		switch a.Key {
		case "rsaaeskey":
			encryptedAESKey, err = base64.StdEncoding.DecodeString(a.Value)
			if err != nil {
				return nil, nil, AnnounceParams{}, fmt.Errorf("session: decode rsaaeskey: %w", err)
			}
		case "aesiv":
			iv, err = base64.StdEncoding.DecodeString(a.Value)
			if err != nil {
				return nil, nil, AnnounceParams{}, fmt.Errorf("session: decode aesiv: %w", err)
			}
		case "fmtp":
			params, err = parseFmtp(a.Value)
			if err != nil {
				return nil, nil, AnnounceParams{}, err
			}
		}
	}
	return encryptedAESKey, iv, params, nil
}

func parseFmtp(v string) (AnnounceParams, error) {
	var fields []int
	cur := 0
	haveDigit := false
	for i := 0; i <= len(v); i++ {
		if i < len(v) && v[i] >= '0' && v[i] <= '9' {
			cur = cur*10 + int(v[i]-'0')
			haveDigit = true
			continue
		}
		if haveDigit {
			fields = append(fields, cur)
			cur = 0
			haveDigit = false
		}
	}
	if len(fields) < 11 {
		return AnnounceParams{}, fmt.Errorf("session: malformed fmtp line %q", v)
	}
	return AnnounceParams{
		SampleSize: fields[2],
		SampleRate: fields[10],
	}, nil
}
