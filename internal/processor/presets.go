package processor

import "github.com/tonelift/api/internal/model"

// streamingTarget is the fallback for unrecognized delivery profiles.
var streamingTarget = model.LoudnessTarget{IntegratedLufs: -14, TruePeakDb: -1.0, LoudnessRange: 10}

// masterTargets maps delivery profiles to loudness targets.
var masterTargets = map[model.MasterProfile]model.LoudnessTarget{
	model.ProfileSpotify:    {IntegratedLufs: -14, TruePeakDb: -1.0, LoudnessRange: 10},
	model.ProfileStreaming:  {IntegratedLufs: -14, TruePeakDb: -1.0, LoudnessRange: 10},
	model.ProfileAppleMusic: {IntegratedLufs: -16, TruePeakDb: -1.0, LoudnessRange: 11},
	model.ProfileSoundCloud: {IntegratedLufs: -13, TruePeakDb: -1.0, LoudnessRange: 10},
	model.ProfileLoud:       {IntegratedLufs: -10, TruePeakDb: -0.8, LoudnessRange: 8},
}

// safetyTarget keeps mix and 4d renders clear of clipping without
// flattening their dynamics.
var safetyTarget = model.LoudnessTarget{IntegratedLufs: -16, TruePeakDb: -1.2, LoudnessRange: 12}

// MasterTarget resolves a delivery profile. Unrecognized profiles fall
// back to the streaming default.
func MasterTarget(profile model.MasterProfile) model.LoudnessTarget {
	if t, ok := masterTargets[profile]; ok {
		return t
	}
	return streamingTarget
}

// NormalizationTarget picks the loudness target for a mode: master jobs
// normalize to their delivery profile, mix and 4d to the safety target.
func NormalizationTarget(mode model.EnhancementType, profile model.MasterProfile) model.LoudnessTarget {
	if mode == model.EnhancementMaster {
		return MasterTarget(profile)
	}
	return safetyTarget
}
