package tp

func (t *Transport) processRx(msg CanMessage, txChan chan<- CanMessage) {
	if !t.address.IsForMe(&msg) {
		return
	}

	frame, err := ParseFrame(msg.Data)
	if err != nil {
		t.fireError(&FrameError{Msg: msg, Reason: err.Error()})
		return
	}

	switch f := frame.(type) {
	case *FlowControlFrame:
		t.handleFlowControl(f, txChan)
	case *SingleFrame:
		t.handleSingleFrame(f)
	case *FirstFrame:
		t.handleFirstFrame(f, txChan)
	case *ConsecutiveFrame:
		t.handleConsecutiveFrame(f, txChan)
	}
}

func (t *Transport) deliver(data []byte) {
	select {
	case t.rxDataChan <- data:
	default:
		t.fireError(ErrRxBufferFull)
	}
}

func (t *Transport) handleSingleFrame(f *SingleFrame) {
	if t.rxState != StateIdle {
		t.fireError(ErrInterrupted)
	}
	t.stopReceiving()
	t.deliver(append([]byte(nil), f.Data...))
}

func (t *Transport) handleFirstFrame(f *FirstFrame, txChan chan<- CanMessage) {
	if t.rxState != StateIdle {
		t.fireError(ErrInterrupted)
	}
	t.stopReceiving()

	t.rxFrameLen = f.TotalSize
	t.rxBuffer = make([]byte, 0, f.TotalSize)
	t.rxBuffer = append(t.rxBuffer, f.Data...)
	t.rxState = StateWaitCF
	t.rxSeqNum = 1

	t.emit(flowControlPayload(FlowStatusContinueToSend, t.config.BlockSize, t.config.StMin), txChan)
	resetTimer(t.timerRxCF, t.config.TimeoutN_Cr)
}

func (t *Transport) handleConsecutiveFrame(f *ConsecutiveFrame, txChan chan<- CanMessage) {
	if t.rxState != StateWaitCF {
		return
	}
	if f.SequenceNumber != t.rxSeqNum {
		t.fireError(&SequenceError{Want: t.rxSeqNum, Got: f.SequenceNumber})
		t.stopReceiving()
		return
	}

	t.rxSeqNum = (t.rxSeqNum + 1) & 0x0F
	remaining := t.rxFrameLen - len(t.rxBuffer)
	if len(f.Data) > remaining {
		t.rxBuffer = append(t.rxBuffer, f.Data[:remaining]...)
	} else {
		t.rxBuffer = append(t.rxBuffer, f.Data...)
	}

	if len(t.rxBuffer) >= t.rxFrameLen {
		t.deliver(t.rxBuffer)
		t.rxBuffer = nil
		t.stopReceiving()
		return
	}

	t.rxBlockCounter++
	if t.config.BlockSize > 0 && t.rxBlockCounter >= t.config.BlockSize {
		t.rxBlockCounter = 0
		t.emit(flowControlPayload(FlowStatusContinueToSend, t.config.BlockSize, t.config.StMin), txChan)
	}
	resetTimer(t.timerRxCF, t.config.TimeoutN_Cr)
}
