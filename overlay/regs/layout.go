package regs

// Blender (display engine backend) registers.
const (
	// Mode control register.
	ModCtl uint32 = 0x800
	// Background colour register.
	BackColor uint32 = 0x804
	// Output size register, (h-1)<<16 | (w-1).
	DispSize uint32 = 0x808
	// Register buffer control: load shadow registers at next vblank.
	RegBuffCtl uint32 = 0x870

	// Sprite pool enable register.
	SpriteEn uint32 = 0x900
	// Sprite pool priority band register.
	SpriteBand uint32 = 0x904
)

// Per layer registers, indexed by layer.
func LayerSize(layer int) uint32      { return 0x810 + uint32(layer)*4 }
func LayerCoord(layer int) uint32     { return 0x820 + uint32(layer)*4 }
func LayerLineWidth(layer int) uint32 { return 0x840 + uint32(layer)*4 }
func LayerAddrLow(layer int) uint32   { return 0x850 + uint32(layer)*4 }
func LayerAttCtl0(layer int) uint32   { return 0x890 + uint32(layer)*4 }
func LayerAttCtl1(layer int) uint32   { return 0x8A0 + uint32(layer)*4 }

// LayerAddrHigh holds the top address bits of all layers, one byte each.
const LayerAddrHigh uint32 = 0x860

// YUV channel registers. The channel feeds one layer at a time.
const IYUVCtl uint32 = 0x920

func IYUVAddr(plane int) uint32      { return 0x930 + uint32(plane)*4 }
func IYUVLineWidth(plane int) uint32 { return 0x940 + uint32(plane)*4 }

// IYUVCtl fields.
const (
	IYUVCtlFormatLow  uint8 = 12
	IYUVCtlFormatHigh uint8 = 14
	IYUVCtlSeqLow     uint8 = 16
	IYUVCtlSeqHigh    uint8 = 17
)

// IYUVCtl buffer layouts.
const (
	IYUVPlanar444 uint32 = 0x1
	IYUVPacked422 uint32 = 0x4
)

// ModCtl bits.
const (
	ModCtlEngineEn uint8 = 0
	ModCtlStart    uint8 = 1
	// layer n enable is bit ModCtlLayerEnBase+n
	ModCtlLayerEnBase uint8 = 8
)

// AttCtl0 fields.
const (
	AttCtl0GlobalAlphaEn uint8 = 0
	AttCtl0VideoEn       uint8 = 1 // layer is fed by the scaler
	AttCtl0YUVEn         uint8 = 2
	AttCtl0PrioLow       uint8 = 10
	AttCtl0PrioHigh      uint8 = 11
	AttCtl0PipeSel       uint8 = 15
	AttCtl0AlphaLow      uint8 = 24
	AttCtl0AlphaHigh     uint8 = 31
)

// AttCtl1 fields.
const (
	AttCtl1FormatLow  uint8 = 8
	AttCtl1FormatHigh uint8 = 11
)

// RegBuffCtl bits.
const (
	RegBuffLoadCtl     uint8 = 0
	RegBuffAutoLoadDis uint8 = 1
)

// Scaler (display engine frontend) registers.
const (
	ScalerEn       uint32 = 0x000
	ScalerFrmCtl   uint32 = 0x004
	ScalerBufAddr0 uint32 = 0x020
	ScalerBufAddr1 uint32 = 0x024
	ScalerBufAddr2 uint32 = 0x028
	ScalerLineStr0 uint32 = 0x040
	ScalerLineStr1 uint32 = 0x044
	ScalerLineStr2 uint32 = 0x048
	ScalerInFmt    uint32 = 0x04C
	ScalerOutFmt   uint32 = 0x05C
	ScalerInSize   uint32 = 0x100
	ScalerOutSize  uint32 = 0x104
	ScalerHorzFact uint32 = 0x108
	ScalerVertFact uint32 = 0x10C
)

// ScalerEn / ScalerFrmCtl bits.
const (
	ScalerEnEnable    uint8 = 0
	ScalerFrmCtlStart uint8 = 16
	ScalerFrmCtlReady uint8 = 0
)
