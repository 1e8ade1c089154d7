package tp

// initiateTx 开始发送一个新报文，只在发送状态机空闲时调用。
func (t *Transport) initiateTx(payload []byte, txChan chan<- CanMessage) {
	if len(payload) <= frameLength-1 {
		t.emit(singleFramePayload(payload), txChan)
		t.stopSending()
		return
	}

	chunk := frameLength - 2
	t.txBuffer = payload[chunk:]
	if !t.emit(firstFramePayload(payload[:chunk], len(payload)), txChan) {
		t.stopSending()
		return
	}
	t.txSeqNum = 1
	t.txState = StateWaitFC
	resetTimer(t.timerRxFC, t.config.TimeoutN_Bs)
}

func (t *Transport) handleFlowControl(fc *FlowControlFrame, txChan chan<- CanMessage) {
	if t.txState != StateWaitFC {
		return
	}

	switch fc.FlowStatus {
	case FlowStatusContinueToSend:
		stopTimer(t.timerRxFC)
		t.wftCounter = 0
		t.remoteBlockSize = fc.BlockSize
		t.remoteStMin = fc.STmin
		t.txBlockCounter = 0
		t.txState = StateTransmit
		// first CF goes out immediately, STmin applies between CFs
		resetTimer(t.timerTxSTmin, 0)

	case FlowStatusWait:
		t.wftCounter++
		if t.config.MaxWaitFrames > 0 && t.wftCounter > t.config.MaxWaitFrames {
			t.fireError(ErrWaitFrames)
			t.stopSending()
			return
		}
		resetTimer(t.timerRxFC, t.config.TimeoutN_Bs)

	case FlowStatusOverflow:
		t.fireError(ErrOverflow)
		t.stopSending()
	}
}

// transmitNext 发送下一个连续帧，由 STmin 定时器触发。
func (t *Transport) transmitNext(txChan chan<- CanMessage) {
	chunk := frameLength - 1
	var data []byte
	if len(t.txBuffer) > chunk {
		data, t.txBuffer = t.txBuffer[:chunk], t.txBuffer[chunk:]
	} else {
		data, t.txBuffer = t.txBuffer, nil
	}

	if !t.emit(consecutiveFramePayload(data, t.txSeqNum), txChan) {
		t.stopSending()
		return
	}
	t.txSeqNum = (t.txSeqNum + 1) & 0x0F
	t.txBlockCounter++

	if len(t.txBuffer) == 0 {
		t.stopSending()
		return
	}
	if t.remoteBlockSize > 0 && t.txBlockCounter >= t.remoteBlockSize {
		t.txState = StateWaitFC
		resetTimer(t.timerRxFC, t.config.TimeoutN_Bs)
		return
	}
	resetTimer(t.timerTxSTmin, t.remoteStMin)
}
