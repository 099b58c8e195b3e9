package profile

import (
	"fmt"

	"gopkg.in/ini.v1"
)

// LoadINI merges user defined models from an INI file into the model
// table. One section per product code prefix :
//
//	[G581PR1]
//	family      = inertial
//	gyro_scale  = 0.0151515
//	accel_scale = 0.5
//	temp_scale  = 0.0039063
//	temp_offset = 0
//
// Existing models with the same name are replaced, which allows
// overriding a built-in scale factor after a datasheet revision.
func LoadINI(filePath string) error {
	file, err := ini.Load(filePath)
	if err != nil {
		return err
	}
	for _, section := range file.Sections() {
		name := section.Name()
		if name == ini.DefaultSection {
			continue
		}
		model := Model{Name: name}
		switch section.Key("family").String() {
		case "accel":
			model.Family = FamilyAccel
		case "inertial":
			model.Family = FamilyInertial
		default:
			return fmt.Errorf("model %v : family must be accel or inertial", name)
		}
		model.GyroScale = section.Key("gyro_scale").MustFloat64(0)
		model.AccelScale = section.Key("accel_scale").MustFloat64(0)
		model.TempScale = section.Key("temp_scale").MustFloat64(0)
		model.TempOffset = section.Key("temp_offset").MustFloat64(0)
		if model.AccelScale == 0 {
			return fmt.Errorf("model %v : accel_scale is required", name)
		}
		if model.Family == FamilyInertial && model.GyroScale == 0 {
			return fmt.Errorf("model %v : gyro_scale is required for the inertial family", name)
		}
		Register(model)
	}
	return nil
}
