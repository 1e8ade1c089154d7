package diag

import (
	"bytes"
	"context"
	"fmt"

	"github.com/LoveWonYoung/egsdiag/codec"
	"github.com/LoveWonYoung/egsdiag/flashstore"
)

// DownloadModuleSettings 读出容器分区，解压得到 YAML 原文和解析后的文档
func (d *Nag52Diag) DownloadModuleSettings(ctx context.Context, part codec.PartitionInfo, progress func(Progress)) ([]byte, *codec.ModuleSettingsData, error) {
	raw, err := d.NewFlasher(progress).ReadPartition(ctx, part)
	if err != nil {
		return nil, nil, err
	}
	_, yml, err := flashstore.Parse(raw)
	if err != nil {
		return nil, nil, err
	}
	doc, err := codec.ParseModuleSettings(bytes.NewReader(yml))
	if err != nil {
		return yml, nil, err
	}
	return yml, doc, nil
}

// UploadModuleSettings 压缩 YAML 后写入数据分区，不复位
func (d *Nag52Diag) UploadModuleSettings(ctx context.Context, part codec.PartitionInfo, yml []byte, progress func(Progress)) error {
	if _, err := codec.ParseModuleSettings(bytes.NewReader(yml)); err != nil {
		return fmt.Errorf("module settings document: %w", err)
	}
	container, err := flashstore.Encode(yml)
	if err != nil {
		return err
	}
	if uint64(len(container)) > uint64(part.Size) {
		return &SizeMismatchError{What: "module settings container", Wanted: int(part.Size), Got: len(container)}
	}
	return d.NewFlasher(progress).WritePartition(ctx, part, container)
}
