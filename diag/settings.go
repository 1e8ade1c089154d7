package diag

import (
	"context"
	"fmt"

	"github.com/LoveWonYoung/egsdiag/codec"
	"github.com/LoveWonYoung/egsdiag/kwp"
)

// readConfig 响应 61 lid data，id 与长度检查由 codec 完成
func readConfig[T any](ctx context.Context, d *Nag52Diag, lid byte) (T, error) {
	var v T
	err := d.WithKWP(func(s *kwp.Server) error {
		resp, err := s.Send(ctx, []byte{kwp.SIDReadDataByLocalID, lid})
		if err != nil {
			return err
		}
		v, err = codec.UnpackSettings[T](lid, resp[1:])
		return err
	})
	return v, err
}

// writeConfig 需要编程会话，写入后复位使配置生效
func writeConfig(ctx context.Context, d *Nag52Diag, lid byte, v any) error {
	packed, err := codec.PackSettings(lid, v)
	if err != nil {
		return err
	}
	return d.WithKWP(func(s *kwp.Server) error {
		if err := s.SetSession(ctx, kwp.SessionReprogramming); err != nil {
			return err
		}
		if _, err := s.Send(ctx, append([]byte{kwp.SIDWriteDataByLocalID}, packed...)); err != nil {
			return err
		}
		return s.ECUReset(ctx, kwp.ResetPowerOn)
	})
}

func (d *Nag52Diag) ReadCoreConfig(ctx context.Context) (codec.TcmCoreConfig, error) {
	return readConfig[codec.TcmCoreConfig](ctx, d, LIDCoreConfig)
}

func (d *Nag52Diag) WriteCoreConfig(ctx context.Context, cfg codec.TcmCoreConfig) error {
	return writeConfig(ctx, d, LIDCoreConfig, &cfg)
}

func (d *Nag52Diag) ReadEfuseConfig(ctx context.Context) (codec.TcmEfuseConfig, error) {
	return readConfig[codec.TcmEfuseConfig](ctx, d, LIDEfuseConfig)
}

// WriteEfuseConfig eFuse 只能写一次
func (d *Nag52Diag) WriteEfuseConfig(ctx context.Context, cfg codec.TcmEfuseConfig) error {
	return writeConfig(ctx, d, LIDEfuseConfig, &cfg)
}

// readSetting 响应 61 FC id data，默认值请求的 id 带最高位。
// want < 0 时不检查长度
func readSetting(ctx context.Context, s *kwp.Server, id byte, want int) ([]byte, error) {
	resp, err := s.Send(ctx, []byte{kwp.SIDReadDataByLocalID, LIDSettings, id})
	if err != nil {
		return nil, err
	}
	if len(resp) < 2 {
		return nil, kwp.ErrInvalidResponseLength
	}
	return codec.SettingsBody(id, resp[2:], want)
}

// ReadSetting 21 FC id，返回 SCN 编码原始字节
func (d *Nag52Diag) ReadSetting(ctx context.Context, id uint8) ([]byte, error) {
	var out []byte
	err := d.WithKWP(func(s *kwp.Server) error {
		var err error
		out, err = readSetting(ctx, s, id, -1)
		return err
	})
	return out, err
}

// ReadSettingDefault 最高位置 1 读取出厂默认值
func (d *Nag52Diag) ReadSettingDefault(ctx context.Context, id uint8) ([]byte, error) {
	return d.ReadSetting(ctx, id|codec.SettingsDefaultFlag)
}

// WriteSetting 3B FC id data
func (d *Nag52Diag) WriteSetting(ctx context.Context, id uint8, data []byte) error {
	return d.WithKWP(func(s *kwp.Server) error {
		return s.WriteLocalIdentifier(ctx, LIDSettings, append([]byte{id}, data...))
	})
}

// SettingValues 当前值与默认值
type SettingValues struct {
	Setting *codec.SettingsData
	Current map[string]any
	Default map[string]any
}

// DecodeSetting 按模块设置文档读出并解码一个 SCN 项
func (d *Nag52Diag) DecodeSetting(ctx context.Context, doc *codec.ModuleSettingsData, id uint8) (*SettingValues, error) {
	setting, ok := doc.Setting(id)
	if !ok {
		return nil, fmt.Errorf("%w: no setting with SCN id 0x%02X", ErrParameterInvalid, id)
	}
	var cur, def []byte
	err := d.WithKWP(func(s *kwp.Server) error {
		var err error
		if cur, err = readSetting(ctx, s, id, setting.Size()); err != nil {
			return err
		}
		def, err = readSetting(ctx, s, id|codec.SettingsDefaultFlag, setting.Size())
		return err
	})
	if err != nil {
		return nil, err
	}
	out := &SettingValues{Setting: setting}
	if out.Current, err = setting.Decode(doc, cur); err != nil {
		return nil, err
	}
	if out.Default, err = setting.Decode(doc, def); err != nil {
		return nil, err
	}
	return out, nil
}
