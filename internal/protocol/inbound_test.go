package protocol

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/studyroom/internal/domain"
)

const testSDP = "v=0\r\n" +
	"o=- 4215775240449105457 2 IN IP4 127.0.0.1\r\n" +
	"s=-\r\n" +
	"t=0 0\r\n" +
	"m=application 9 UDP/DTLS/SCTP webrtc-datachannel\r\n" +
	"c=IN IP4 0.0.0.0\r\n" +
	"a=mid:0\r\n"

func sdpJSON(t *testing.T, typ string) string {
	t.Helper()
	b, err := json.Marshal(map[string]string{"type": typ, "sdp": testSDP})
	require.NoError(t, err)
	return string(b)
}

func TestDecode_JoinRoom(t *testing.T) {
	typ, msg, err := Decode([]byte(`{"type":"join-room","roomId":" r1 ","userData":{"name":"  Ada ","avatar":"a.png","isMuted":true}}`))
	require.NoError(t, err)
	assert.Equal(t, TypeJoinRoom, typ)

	join, ok := msg.(JoinRoom)
	require.True(t, ok)
	assert.Equal(t, domain.RoomID("r1"), join.RoomID)
	assert.Equal(t, "Ada", join.UserData.Name)
	assert.True(t, join.UserData.IsMuted)
}

func TestDecode_JoinRoom_DefaultsName(t *testing.T) {
	_, msg, err := Decode([]byte(`{"type":"join-room","roomId":"r1"}`))
	require.NoError(t, err)
	assert.Equal(t, "guest", msg.(JoinRoom).UserData.Name)
}

func TestDecode_Rejects(t *testing.T) {
	cases := map[string]struct {
		in  string
		err error
	}{
		"not json":            {`{`, ErrBadJSON},
		"unknown type":        {`{"type":"explode"}`, ErrUnknownType},
		"join without room":   {`{"type":"join-room","userData":{}}`, ErrMissingRoom},
		"join long name":      {`{"type":"join-room","roomId":"r","userData":{"name":"` + longName() + `"}}`, domain.ErrUsernameTooLong},
		"leave without room":  {`{"type":"leave-room","roomId":"  "}`, ErrMissingRoom},
		"message null":        {`{"type":"send-message","roomId":"r","message":null}`, ErrEmptyPayload},
		"reaction missing":    {`{"type":"send-reaction","roomId":"r"}`, ErrEmptyPayload},
		"update empty":        {`{"type":"update-participant","roomId":"r","updates":{}}`, ErrEmptyUpdate},
		"offer without to":    {`{"type":"offer","offer":` + sdpJSON(t, "offer") + `}`, ErrMissingTarget},
		"offer without sdp":   {`{"type":"offer","to":"c2"}`, ErrEmptyPayload},
		"offer wrong type":    {`{"type":"offer","to":"c2","offer":` + sdpJSON(t, "answer") + `}`, ErrBadSDP},
		"offer garbage sdp":   {`{"type":"offer","to":"c2","offer":{"type":"offer","sdp":"hello"}}`, ErrBadSDP},
		"answer as string":    {`{"type":"answer","to":"c2","answer":"sdp"}`, ErrBadSDP},
		"candidate no prefix": {`{"type":"ice-candidate","to":"c2","candidate":{"candidate":"foo","sdpMid":"0"}}`, ErrBadCandidate},
		"candidate no mid":    {`{"type":"ice-candidate","to":"c2","candidate":{"candidate":"candidate:1 1 udp 1 10.0.0.1 5000 typ host"}}`, ErrBadCandidate},
		"to not a string":     {`{"type":"ice-candidate","to":5,"candidate":{"candidate":""}}`, ErrBadJSON},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, msg, err := Decode([]byte(tc.in))
			assert.ErrorIs(t, err, tc.err)
			assert.Nil(t, msg)
		})
	}
}

func longName() string {
	b := make([]byte, domain.MaxUsernameLen+1)
	for i := range b {
		b[i] = 'x'
	}
	return string(b)
}

func TestDecode_SignalsKeepPayloadBytes(t *testing.T) {
	offer := sdpJSON(t, "offer")
	_, msg, err := Decode([]byte(`{"type":"offer","to":"c2","offer":` + offer + `}`))
	require.NoError(t, err)
	sig := msg.(Signal)
	assert.Equal(t, TypeOffer, sig.Kind)
	assert.Equal(t, domain.ConnID("c2"), sig.To)
	assert.JSONEq(t, offer, string(sig.Payload))

	_, msg, err = Decode([]byte(`{"type":"answer","to":"c1","answer":` + sdpJSON(t, "answer") + `}`))
	require.NoError(t, err)
	assert.Equal(t, TypeAnswer, msg.MessageType())

	cand := `{"candidate":"candidate:842163049 1 udp 1677729535 203.0.113.7 46154 typ srflx","sdpMid":"0","sdpMLineIndex":0}`
	_, msg, err = Decode([]byte(`{"type":"ice-candidate","to":"c1","candidate":` + cand + `}`))
	require.NoError(t, err)
	assert.Equal(t, cand, string(msg.(Signal).Payload))

	// end-of-candidates marker
	_, _, err = Decode([]byte(`{"type":"ice-candidate","to":"c1","candidate":{"candidate":""}}`))
	assert.NoError(t, err)
}

func TestDecode_UpdateParticipant(t *testing.T) {
	_, msg, err := Decode([]byte(`{"type":"update-participant","roomId":"r1","updates":{"isMuted":false,"name":" Grace "}}`))
	require.NoError(t, err)
	up := msg.(UpdateParticipant)
	require.NotNil(t, up.Updates.IsMuted)
	assert.False(t, *up.Updates.IsMuted)
	assert.Equal(t, "Grace", *up.Updates.Name)
	assert.Nil(t, up.Updates.Avatar)
}

func TestDecode_MessageAndReaction(t *testing.T) {
	_, msg, err := Decode([]byte(`{"type":"send-message","roomId":"r1","message":{"text":"hi"}}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"text":"hi"}`, string(msg.(SendMessage).Message))

	_, msg, err = Decode([]byte(`{"type":"send-reaction","roomId":"r1","reaction":"🎉"}`))
	require.NoError(t, err)
	assert.Equal(t, domain.RoomID("r1"), msg.(SendReaction).RoomID)

	_, msg, err = Decode([]byte(`{"type":"ping"}`))
	require.NoError(t, err)
	assert.Equal(t, Ping{}, msg)
}

func TestNewRelayed_PlacesPayload(t *testing.T) {
	payload := json.RawMessage(`{"candidate":""}`)
	frame, err := Encode(NewRelayed(TypeICECandidate, "c1", payload))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"ice-candidate","from":"c1","candidate":{"candidate":""}}`, string(frame))
}
