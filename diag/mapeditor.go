package diag

import (
	"context"

	"github.com/LoveWonYoung/egsdiag/codec"
	"github.com/LoveWonYoung/egsdiag/kwp"
)

// Map 一张标定 map 的三份数据
type Map struct {
	ID      uint8
	Meta    *codec.MapMeta
	Current []int16
	Default []int16
	EEPROM  []int16
}

func mapRead(ctx context.Context, s *kwp.Server, id uint8, cmd codec.MapCmd) ([]byte, error) {
	resp, err := s.Send(ctx, []byte{kwp.SIDReadDataByLocalID, codec.MapEditorID, id, byte(cmd), 0x00, 0x00})
	if err != nil {
		return nil, err
	}
	return resp[1:], nil
}

func mapWrite(ctx context.Context, s *kwp.Server, id uint8, cmd codec.MapCmd, payload []byte) error {
	if payload == nil {
		payload = []byte{0x00, 0x00}
	}
	return s.WriteLocalIdentifier(ctx, codec.MapEditorID, append([]byte{id, byte(cmd)}, payload...))
}

func (d *Nag52Diag) ReadMapMeta(ctx context.Context, id uint8) (*codec.MapMeta, error) {
	var meta *codec.MapMeta
	err := d.WithKWP(func(s *kwp.Server) error {
		b, err := mapRead(ctx, s, id, codec.MapReadMeta)
		if err != nil {
			return err
		}
		meta, err = codec.ParseMapMeta(b)
		return err
	})
	return meta, err
}

// ReadMapData cmd 为 MapRead / MapReadDefault / MapReadEEPROM
func (d *Nag52Diag) ReadMapData(ctx context.Context, id uint8, cmd codec.MapCmd) ([]int16, error) {
	var cells []int16
	err := d.WithKWP(func(s *kwp.Server) error {
		b, err := mapRead(ctx, s, id, cmd)
		if err != nil {
			return err
		}
		cells, err = codec.ParseMapData(b)
		return err
	})
	return cells, err
}

// ReadMap 依次读取元数据、当前值、默认值和 EEPROM 值
func (d *Nag52Diag) ReadMap(ctx context.Context, id uint8) (*Map, error) {
	m := &Map{ID: id}
	err := d.WithKWP(func(s *kwp.Server) error {
		b, err := mapRead(ctx, s, id, codec.MapReadMeta)
		if err != nil {
			return err
		}
		if m.Meta, err = codec.ParseMapMeta(b); err != nil {
			return err
		}
		for _, r := range []struct {
			cmd codec.MapCmd
			dst *[]int16
		}{
			{codec.MapRead, &m.Current},
			{codec.MapReadDefault, &m.Default},
			{codec.MapReadEEPROM, &m.EEPROM},
		} {
			if b, err = mapRead(ctx, s, id, r.cmd); err != nil {
				return err
			}
			if *r.dst, err = codec.ParseMapData(b); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

// WriteMap 只写入 RAM，需要 BurnMap 才会保存到 EEPROM
func (d *Nag52Diag) WriteMap(ctx context.Context, id uint8, cells []int16) error {
	return d.WithKWP(func(s *kwp.Server) error {
		return mapWrite(ctx, s, id, codec.MapWrite, codec.EncodeMapData(cells))
	})
}

func (d *Nag52Diag) mapCommand(ctx context.Context, id uint8, cmd codec.MapCmd) error {
	return d.WithKWP(func(s *kwp.Server) error {
		return mapWrite(ctx, s, id, cmd, nil)
	})
}

func (d *Nag52Diag) BurnMap(ctx context.Context, id uint8) error {
	return d.mapCommand(ctx, id, codec.MapBurn)
}

func (d *Nag52Diag) ResetMapToFlash(ctx context.Context, id uint8) error {
	return d.mapCommand(ctx, id, codec.MapResetToFlash)
}

func (d *Nag52Diag) UndoMap(ctx context.Context, id uint8) error {
	return d.mapCommand(ctx, id, codec.MapUndo)
}
