package diag

import (
	"context"
	"log"

	"github.com/LoveWonYoung/egsdiag/codec"
	"github.com/LoveWonYoung/egsdiag/nvs"
)

// NVSPartition TCU 上 NVS 分区位置固定
var NVSPartition = codec.PartitionInfo{Address: nvs.PartitionAddress, Size: nvs.PartitionSize}

// DumpNVS 读出 NVS 分区并解析。页错误不会中断，通过 Partition.Err 查看。
func (d *Nag52Diag) DumpNVS(ctx context.Context, progress func(Progress)) ([]byte, *nvs.Partition, error) {
	raw, err := d.NewFlasher(progress).ReadPartition(ctx, NVSPartition)
	if err != nil {
		return nil, nil, err
	}
	p := nvs.Parse(raw)
	if perr := p.Err(); perr != nil {
		log.Printf("NVS 解析存在异常页: %v", perr)
	}
	return raw, p, nil
}

// DumpCoredump 读出 coredump 分区原始内容
func (d *Nag52Diag) DumpCoredump(ctx context.Context, progress func(Progress)) ([]byte, error) {
	part, err := d.CoredumpPartition(ctx)
	if err != nil {
		return nil, err
	}
	return d.NewFlasher(progress).ReadPartition(ctx, part)
}
