package cli

import (
	"bytes"
	"context"
	"encoding/base64"
	"time"

	"github.com/golang/glog"

	"sirena/pkg/keycache"
	"sirena/pkg/logging"
	"sirena/pkg/logging/otel"
	"sirena/pkg/proto"
	"sirena/pkg/proto/envelope"
	"sirena/pkg/sec"
	"sirena/pkg/util"
)

var keyInfoQuery = envelope.NewQuery(proto.MethodKeyInfo, nil)

// handshake moves the connection to a negotiated symmetric key:
//
//	no key -> key_info (server public key) -> asym_hand_shake (key id) -> done
//
// A cached key is adopted without any exchange unless force is set. The
// caller has bound and connected the connection.
func (s *Session) handshake(ctx context.Context, force bool) error {
	st := s.state
	if st.done && !force {
		return nil
	}
	cache := s.proc.keyCache
	if err := cache.SpinUp(ctx); err != nil {
		glog.Warningf("key cache: %s", err)
	}

	if !force && cache.IsAvailable() && s.adoptCachedKey(ctx) {
		otel.RecordHandshake(otel.HandshakeCached)
		return nil
	}
	if cache.IsAvailable() {
		if err := cache.Purge(ctx); err != nil {
			glog.Warningf("key cache purge: %s", err)
		}
	}

	timeStart := time.Now()
	st.done = false
	priv, err := s.proc.loadPrivateKey()
	if err != nil {
		return err
	}
	st.keys.SetPrivateKey(priv)
	if err = st.keys.ResetSymmetricKey(); err != nil {
		return NewError(KindProtocol, "handshake", err)
	}

	if err = s.requestServerKey(ctx); err != nil {
		return err
	}
	if err = s.negotiateSymmetricKey(ctx); err != nil {
		return err
	}

	if cache.IsAvailable() {
		e := keycache.Entry{
			Seed:     st.keys.SymmetricSeed(),
			KeyId:    st.keys.SymmetricKeyId(),
			ExpireAt: util.ExpireAtFrom(time.Now(), keycache.KeyTTL),
		}
		if err = cache.Set(ctx, e); err != nil {
			glog.Warningf("key cache set: %s", err)
		}
	}
	st.done = true

	kind := otel.HandshakeNetwork
	if force {
		kind = otel.HandshakeForced
	}
	otel.RecordHandshake(kind)
	glog.Infof("handshake done %s", logging.NewKVBufferForLog().
		AddConnId(s.connId()).AddKeyId(st.keys.SymmetricKeyId()).
		Add([]byte("kind"), kind).AddElapsed(time.Since(timeStart)).String())
	return nil
}

func (s *Session) adoptCachedKey(ctx context.Context) bool {
	e, found, err := s.proc.keyCache.Get(ctx)
	if err != nil {
		glog.Warningf("key cache get: %s", err)
		return false
	}
	if !found || len(e.Seed) == 0 || e.KeyId == 0 {
		return false
	}
	if err = s.state.keys.SetSymmetricKey(e.Seed, e.KeyId); err != nil {
		glog.Warningf("key cache: %s", err)
		return false
	}
	s.state.done = true
	if glog.V(2) {
		glog.Infof("symmetric key taken from cache %s", logging.NewKVBufferForLog().
			AddConnId(s.connId()).AddKeyId(e.KeyId).String())
	}
	return true
}

func (s *Session) requestServerKey(ctx context.Context) error {
	body, err := keyInfoQuery.Payload()
	if err != nil {
		return NewError(KindProtocol, "build key_info request", err)
	}
	result, err := s.queryWithRetry(ctx, proto.MethodKeyInfo, body, false)
	if err != nil {
		return err
	}
	if result.Answer.HasError() {
		return gatewayError(result.Answer.Error)
	}
	text := result.Answer.Data.Path("key_manager", "server_public_key").Value()
	if text == "" {
		return NewError(KindKeyRejected, "key_info: server_public_key not found", nil)
	}
	pub, err := sec.ParsePublicKey(text)
	if err != nil {
		return NewError(KindKeyRejected, "key_info", err)
	}
	s.state.keys.SetServerPublicKey(pub)
	return nil
}

// negotiateSymmetricKey sends the local seed encrypted with the server key.
// The gateway assigns the key id in the reply header and echoes the seed.
func (s *Session) negotiateSymmetricKey(ctx context.Context) error {
	keys := s.state.keys
	result, err := s.queryWithRetry(ctx, proto.MethodAsymHandshake, keys.SymmetricSeed(), false)
	if err != nil {
		return err
	}
	if result.Answer.HasError() {
		return gatewayError(result.Answer.Error)
	}
	keys.SetSymmetricKeyId(result.Response.SymKeyId)

	if echoed := result.Answer.Data.Value(); echoed != "" {
		if seed, err := base64.StdEncoding.DecodeString(echoed); err != nil || !bytes.Equal(seed, keys.SymmetricSeed()) {
			glog.Warningf("asym_hand_shake echoed a different key %s", logging.NewKVBufferForLog().
				AddConnId(s.connId()).AddKeyId(keys.SymmetricKeyId()).String())
		}
	}
	return nil
}
