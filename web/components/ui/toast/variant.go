package toast

func variantOrDefault(v Variant) Variant {
	if v == "" {
		return VariantDefault
	}
	return v
}

func positionOrDefault(p Position) Position {
	if p == "" {
		return PositionBottomRight
	}
	return p
}

func variantClass(v Variant) string {
	switch v {
	case VariantSuccess:
		return "border-green-500 bg-green-50 text-green-900"
	case VariantError:
		return "border-red-500 bg-red-50 text-red-900"
	case VariantWarning:
		return "border-yellow-500 bg-yellow-50 text-yellow-900"
	case VariantInfo:
		return "border-blue-500 bg-blue-50 text-blue-900"
	default:
		return "bg-white text-gray-900"
	}
}

func variantGlyph(v Variant) string {
	switch v {
	case VariantSuccess:
		return "✓"
	case VariantError:
		return "✕"
	case VariantWarning:
		return "!"
	case VariantInfo:
		return "i"
	default:
		return "•"
	}
}
