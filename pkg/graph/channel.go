package graph

// Channel is a root input slot of the Material node.
type Channel int

const (
	ChannelAlbedo Channel = iota
	ChannelNormal
	ChannelRoughness
	ChannelAmbientOcclusion
	ChannelHeight
	ChannelMetallic
	ChannelEmission
	ChannelTiling
)

// NumChannels is the number of inputs on the root node.
const NumChannels = 8

// LastTextureChannel is the last channel resolved to a texture binding.
// Channels after it carry non-texture values.
const LastTextureChannel = ChannelEmission

type channelInfo struct {
	pin    string
	define string
	fn     string
	key    string
	types  ValueTypes
}

var channels = [NumChannels]channelInfo{
	ChannelAlbedo:           {"Diffuse", "ALBEDO", "calcDiffuseMap", "albedo", TypesOf(TypeTextureOrColor)},
	ChannelNormal:           {"Normal", "NORMAL", "calcNormalMap", "normal", TypesOf(TypeTextureOrColor)},
	ChannelRoughness:        {"Roughness", "ROUGHNESS", "calcRoughnessMap", "roughness", TypesOf(TypeNumber, TypeTextureOrColor)},
	ChannelAmbientOcclusion: {"Ambient Occlusion", "AMBIENT_OCCLUSION", "calcAmbientOcclusionMap", "ao", TypesOf(TypeNumber, TypeTextureOrColor)},
	ChannelHeight:           {"Height", "HEIGHT", "calcHeightMap", "height", TypesOf(TypeNumber, TypeTextureOrColor)},
	ChannelMetallic:         {"Metallic", "METALNESS", "calcMetallicMap", "metallic", TypesOf(TypeNumber, TypeTextureOrColor)},
	ChannelEmission:         {"Emissive", "EMISSIVE", "calcEmissionMap", "emission", TypesOf(TypeTextureOrColor)},
	ChannelTiling:           {"Tiling", "TILING", "", "tiling", TypesOf(TypeVector2)},
}

// Channels returns all root channels in slot order.
func Channels() []Channel {
	out := make([]Channel, NumChannels)
	for i := range out {
		out[i] = Channel(i)
	}
	return out
}

// PinName is the display name of the channel's root input.
func (c Channel) PinName() string { return c.info().pin }

// Define is the preprocessor symbol emitted when the channel is textured.
func (c Channel) Define() string { return c.info().define }

// FuncName is the name of the generated GLSL wrapper, empty for Tiling.
func (c Channel) FuncName() string { return c.info().fn }

// Key is the short lowercase name used by scripts and the CLI.
func (c Channel) Key() string { return c.info().key }

// Types is the set of value types accepted by the channel's root input.
func (c Channel) Types() ValueTypes { return c.info().types }

func (c Channel) String() string { return c.info().pin }

// Valid reports whether c names a root slot.
func (c Channel) Valid() bool { return c >= 0 && c < NumChannels }

func (c Channel) info() channelInfo {
	if !c.Valid() {
		return channelInfo{pin: "Unknown"}
	}
	return channels[c]
}

// ParseChannel accepts a channel key ("roughness") or pin name ("Roughness").
func ParseChannel(s string) (Channel, bool) {
	for i, ci := range channels {
		if ci.key == s || ci.pin == s {
			return Channel(i), true
		}
	}
	return 0, false
}
