package zrtpfilter

import (
	"testing"

	"github.com/opd-ai/zrtpfilter/zrtp"
	"github.com/opd-ai/zrtpfilter/zrtp/zrtptest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLinkMultiStreamStartsSlave(t *testing.T) {
	master := newStartedRig(t)

	slaveOpts := testOptions()
	slaveOpts.Name = "video"
	slave := newRig(t, slaveOpts)
	require.NoError(t, slave.f.Initialize(false))

	LinkMultiStream(master.f, slave.f)
	assert.False(t, slave.f.Started())

	require.True(t, master.engine.Secure(zrtptest.Secrets(zrtp.Initiator, "abcd"), "AES-CM-128", false))

	assert.Equal(t, []byte("multi-stream-params"), slave.engine.SlaveParams())
	assert.True(t, slave.f.Enabled())
	assert.True(t, slave.f.Started())
	assert.True(t, slave.f.IsMultiStream())
	assert.False(t, master.f.IsMultiStream())

	// The master handed out its parameters and cannot become a slave.
	assert.ErrorIs(t, master.f.SetMultiStreamParams([]byte("x")), ErrMasterStream)
}

func TestMultiStreamSlaveProtectsMedia(t *testing.T) {
	const (
		slaveLocalSSRC = 0x33333333
		slavePeerSSRC  = 0x44444444
	)
	master := newStartedRig(t)

	slaveOpts := testOptions()
	slaveOpts.Name = "video"
	slaveOpts.LocalSSRC = slaveLocalSSRC
	slave := newRig(t, slaveOpts)
	require.NoError(t, slave.f.Initialize(false))
	LinkMultiStream(master.f, slave.f)

	require.True(t, master.engine.Secure(zrtptest.Secrets(zrtp.Initiator, "abcd"), "AES-CM-128", false))
	require.True(t, slave.f.Started())

	slave.receiveZRTP(t, slavePeerSSRC)
	require.True(t, slave.engine.Secure(zrtptest.Secrets(zrtp.Initiator, ""), "AES-CM-128", false))
	sender, receiver := slave.f.Secure()
	require.True(t, sender)
	require.True(t, receiver)

	// Outgoing slave media is SRTP under the slave's own SSRC.
	g := newGenerator(t, slaveLocalSSRC)
	plain := nextRTP(t, g)
	require.NoError(t, slave.f.ChainRTPDown(plain))
	peerRecv, _ := peerContexts(t, slaveLocalSSRC, zrtptest.InitiatorKey, zrtptest.InitiatorSalt)
	got, err := peerRecv.Unprotect(slave.sendRTP.Last())
	require.NoError(t, err)
	assert.Equal(t, plain, got)

	// Incoming slave media is authenticated and decrypted.
	peerSend, _ := peerContexts(t, slavePeerSSRC, zrtptest.ResponderKey, zrtptest.ResponderSalt)
	pg := newGenerator(t, slavePeerSSRC)
	incoming := nextRTP(t, pg)
	sealed, err := peerSend.Protect(incoming)
	require.NoError(t, err)
	require.NoError(t, slave.f.ChainRTPUp(sealed))
	assert.Equal(t, incoming, slave.recvRTP.Last())
	assert.Equal(t, uint64(1), slave.f.Stats().Unprotected)
}

func TestLinkMultiStreamRequiresPeerSupport(t *testing.T) {
	master := newStartedRig(t)
	master.engine.MultiStreamAvailable = false
	assert.False(t, master.f.IsMultiStreamAvailable())

	slave := newRig(t, nil)
	require.NoError(t, slave.f.Initialize(false))
	LinkMultiStream(master.f, slave.f)

	require.True(t, master.engine.Secure(zrtptest.Secrets(zrtp.Initiator, ""), "AES-CM-128", false))
	assert.False(t, slave.f.Started())
	assert.Empty(t, slave.engine.SlaveParams())
}

func TestSetMultiStreamParamsErrors(t *testing.T) {
	r := newRig(t, nil)
	assert.ErrorIs(t, r.f.SetMultiStreamParams(nil), ErrNoMultiStreamParams)
	assert.ErrorIs(t, r.f.SetMultiStreamParams([]byte("params")), ErrNotInitialized)

	require.NoError(t, r.f.Initialize(false))
	require.NoError(t, r.f.SetMultiStreamParams([]byte("params")))
	assert.Equal(t, []byte("params"), r.engine.SlaveParams())
}

func TestEmptyMultiStreamParamsDoNotMakeMaster(t *testing.T) {
	r := newRig(t, nil)
	r.engine.Params = nil
	require.NoError(t, r.f.Initialize(false))

	assert.Empty(t, r.f.MultiStreamParams())
	require.NoError(t, r.f.SetMultiStreamParams([]byte("params")))
}
