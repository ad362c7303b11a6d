package peerrpc

// dispatch is the single inbound entry point. Channels may carry non-RPC
// traffic, so anything that does not decode into a known payload shape is
// dropped without a reply; the drop is visible only at debug level.
func (p *Peer) dispatch(payload []byte) {
	var msg inboundMessage
	if err := p.codec.Unmarshal(payload, &msg); err != nil {
		p.log.Debug().Err(err).Msg("drop undecodable payload")
		return
	}

	switch msg.Type {
	case typeCall:
		p.handleCall(&msg)
	case typeCallResult:
		p.handleResult(&msg)
	default:
		p.log.Debug().Str("type", msg.Type).Msg("drop unrecognized payload")
	}
}

// handleCall runs a registered handler and answers with a call-result
// payload echoing the token. An unknown method is dropped silently: the
// protocol has no handler-not-found signal, and a reply here would leak
// RPC chatter onto channels shared with other traffic.
func (p *Peer) handleCall(msg *inboundMessage) {
	handler, ok := p.registry.get(msg.Method)
	if !ok {
		p.log.Debug().Str("method", msg.Method).Str("token", msg.Token).Msg("drop call for unknown method")
		return
	}

	args := make([]any, len(msg.Args))
	for i, arg := range msg.Args {
		if name, ok := callbackName(arg); ok {
			args[i] = p.forwarder(name)
			continue
		}
		args[i] = arg
	}

	res := callResultMessage{Type: typeCallResult, Token: msg.Token}
	if data, failure := invoke(handler, args); failure != nil {
		res.Result = resultFail
		res.Error = failure
	} else {
		res.Result = resultSuccess
		res.Data = data
	}

	payload, err := p.codec.Marshal(res)
	if err != nil {
		p.log.Error().Err(err).Str("method", msg.Method).Msg("encode call-result failed")
		return
	}
	if err := p.adapter.Post(payload); err != nil {
		p.log.Error().Err(err).Str("method", msg.Method).Msg("post call-result failed")
	}
}

// handleResult retires the pending entry for the echoed token. A token with
// no entry is stale, duplicated or foreign and is ignored.
func (p *Peer) handleResult(msg *inboundMessage) {
	fut, ok := p.pending.take(msg.Token)
	if !ok {
		p.log.Debug().Str("token", msg.Token).Msg("drop unmatched call-result")
		return
	}

	if msg.Result == resultSuccess {
		fut.settle(msg.Data, nil)
		return
	}
	remote := &RemoteError{Message: "remote call failed"}
	if msg.Error != nil {
		remote.Message = msg.Error.Message
		remote.Name = msg.Error.Name
	}
	fut.settle(nil, remote)
}

// invoke runs the handler panic-safe. A failure never crashes the
// dispatcher; it becomes the "fail" branch of the call-result.
func invoke(h Handler, args []any) (data any, failure *wireError) {
	defer func() {
		if r := recover(); r != nil {
			failure = normalizeError(r)
		}
	}()
	data, err := h(args...)
	if err != nil {
		return nil, normalizeError(err)
	}
	return data, nil
}
