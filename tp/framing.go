package tp

func flowControlPayload(status FlowStatus, blockSize int, stMin byte) []byte {
	return []byte{pciFlowControl | byte(status), byte(blockSize), stMin}
}

func singleFramePayload(data []byte) []byte {
	payload := make([]byte, 0, 1+len(data))
	payload = append(payload, pciSingleFrame|byte(len(data)))
	return append(payload, data...)
}

func firstFramePayload(chunk []byte, total int) []byte {
	payload := make([]byte, 0, 2+len(chunk))
	payload = append(payload, pciFirstFrame|byte(total>>8&0x0F), byte(total))
	return append(payload, chunk...)
}

func consecutiveFramePayload(chunk []byte, seq int) []byte {
	payload := make([]byte, 0, 1+len(chunk))
	payload = append(payload, pciConsecutiveFrame|byte(seq&0x0F))
	return append(payload, chunk...)
}
