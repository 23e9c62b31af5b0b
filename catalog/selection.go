package catalog

// MergeWithFacilitySettings builds the effective selection set for a
// calculation run. facility_preset additions come from the facility's
// settings (only status=active enables them, though pending applications
// are still surfaced as disabled rows); monthly and daily additions take
// the operator's manual selections as-is.
func MergeWithFacilitySettings(manual []AdditionSelection, additions []Addition, settings []FacilityAdditionSetting) []AdditionSelection {
	manualByCode := make(map[string]AdditionSelection, len(manual))
	for _, s := range manual {
		manualByCode[s.Code] = s
	}
	settingByCode := make(map[string]FacilityAdditionSetting, len(settings))
	for _, fs := range settings {
		settingByCode[fs.AdditionCode] = fs
	}

	var result []AdditionSelection
	for _, a := range additions {
		if a.Kind == KindFacilityPreset {
			fs, ok := settingByCode[a.Code]
			if !ok || !fs.Enabled {
				continue
			}
			result = append(result, AdditionSelection{
				Code:    a.Code,
				Enabled: fs.Applies(),
			})
			continue
		}
		if sel, ok := manualByCode[a.Code]; ok {
			result = append(result, sel)
		}
	}
	return result
}

// ByKind partitions a catalog snapshot by addition kind. Additions with
// no kind recorded count as monthly, the historical default.
type ByKind struct {
	FacilityPreset []Addition
	Monthly        []Addition
	Daily          []Addition
}

func PartitionByKind(additions []Addition) ByKind {
	var out ByKind
	for _, a := range additions {
		switch a.Kind {
		case KindFacilityPreset:
			out.FacilityPreset = append(out.FacilityPreset, a)
		case KindDaily:
			out.Daily = append(out.Daily, a)
		default:
			out.Monthly = append(out.Monthly, a)
		}
	}
	return out
}
