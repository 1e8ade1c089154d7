package tp

// Address 普通寻址 (Normal addressing) 下的一对收发 ID。
type Address struct {
	TxID     uint32
	RxID     uint32
	Extended bool // 29 位 ID
}

// AddressOption 用于 NewAddress 的可选配置
type AddressOption func(*Address)

// WithExtendedID 使用 29 位 ID
func WithExtendedID() AddressOption { return func(a *Address) { a.Extended = true } }

// NewAddress 创建发送 ID 为 txID、接收 ID 为 rxID 的地址对象
func NewAddress(txID, rxID uint32, opts ...AddressOption) *Address {
	addr := &Address{TxID: txID, RxID: rxID}
	for _, opt := range opts {
		opt(addr)
	}
	return addr
}

// IsForMe 检查收到的报文是否发给本节点
func (a *Address) IsForMe(msg *CanMessage) bool {
	return msg.IsExtendedID == a.Extended && msg.ArbitrationID == a.RxID
}
