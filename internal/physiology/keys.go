package physiology

// State keys shared by the modules in this package.
const (
	KeyBloodPressure = "blood_pressure"
	KeyHeartRate     = "heart_rate"
	KeyOxySaturation = "oxy_saturation"
	KeyOxygenDebt    = "oxygen_debt"

	KeyEpinephrine = "epinephrine"
	KeyFluidVolume = "fluid_volume"

	KeyTemperature      = "temperature"
	KeyInfectionLevel   = "infection_level"
	KeyAntipyreticLevel = "antipyretic_level"
	KeyMetabolicRate    = "metabolic_rate"

	KeyLactate   = "lactate"
	KeyPerfusion = "perfusion"

	KeyCRP          = "crp"
	KeyInflammation = "inflammation"

	KeySodium    = "sodium"
	KeyPotassium = "potassium"
	KeyChloride  = "chloride"
	KeyCalcium   = "calcium"
	KeyMagnesium = "magnesium"
	KeyPhosphate = "phosphate"

	KeyPlateletCount = "platelet_count"
	KeyPT            = "pt"
	KeyPTT           = "ptt"
	KeyFibrinogen    = "fibrinogen"
	KeyDDimer        = "d_dimer"
	KeyBleedingRate  = "bleeding_rate"

	KeyHemoglobin  = "hemoglobin"
	KeyHematocrit  = "hematocrit"
	KeyWBC         = "wbc"
	KeyRBC         = "rbc"
	KeyNeutrophils = "neutrophils"
	KeyLymphocytes = "lymphocytes"
	KeyMonocytes   = "monocytes"
	KeyEosinophils = "eosinophils"
	KeyBasophils   = "basophils"

	KeyTSSSeverity    = "tss_severity"
	KeyTissueDamage   = "tissue_damage"
	KeyToxinLevel     = "toxin_level"
	KeyImmuneResponse = "immune_response"

	KeyRhythmType    = "rhythm_type"
	KeyPRInterval    = "pr_interval"
	KeyQRSDuration   = "qrs_duration"
	KeyQTInterval    = "qt_interval"
	KeyHeartBlock    = "heart_block"
	KeyRRVariability = "rr_variability"

	KeySedationScore   = "sedation_score"
	KeyConsciousness   = "consciousness"
	KeyPropofol        = "propofol"
	KeyMidazolam       = "midazolam"
	KeyDexmedetomidine = "dexmedetomidine"

	KeyUrineOutput          = "urine_output"
	KeyUrineSpecificGravity = "urine_specific_gravity"
	KeyUrineSodium          = "urine_sodium"
	KeyKidneyFunction       = "kidney_function"
	KeyUrineOsmolality      = "urine_osmolality"
	KeyUrineProtein         = "urine_protein"

	KeyPH         = "ph"
	KeyPCO2       = "pco2"
	KeyHCO3       = "hco3"
	KeyPO2        = "po2"
	KeyBaseExcess = "base_excess"
	KeyGlucose    = "glucose"
	KeyKetones    = "ketones"
	KeyInsulin    = "insulin"

	KeyChestTubeOutput  = "chest_tube_output"
	KeyJPDrainOutput    = "jp_drain_output"
	KeyNGTubeOutput     = "ng_tube_output"
	KeyTotalDrainOutput = "total_drain_output"
)
