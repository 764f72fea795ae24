package types

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type CaseStatus string

const (
	CaseStatusCreated    CaseStatus = "created"
	CaseStatusUploading  CaseStatus = "uploading"
	CaseStatusProcessing CaseStatus = "processing"
	CaseStatusCompleted  CaseStatus = "completed"
	CaseStatusError      CaseStatus = "error"
)

// statusTransitions encodes the forward edges of the case lifecycle. A fresh
// upload cycle re-enters uploading from any settled state; processing is only
// reachable while no other segmentation run holds the case.
var statusTransitions = map[CaseStatus][]CaseStatus{
	CaseStatusCreated:    {CaseStatusUploading},
	CaseStatusUploading:  {CaseStatusUploading, CaseStatusProcessing},
	CaseStatusProcessing: {CaseStatusCompleted, CaseStatusError},
	CaseStatusCompleted:  {CaseStatusUploading, CaseStatusProcessing},
	CaseStatusError:      {CaseStatusUploading, CaseStatusProcessing},
}

func (s CaseStatus) Valid() bool {
	_, ok := statusTransitions[s]
	return ok
}

func (s CaseStatus) CanTransitionTo(next CaseStatus) bool {
	for _, allowed := range statusTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

type Gender string

const (
	GenderMale   Gender = "Male"
	GenderFemale Gender = "Female"
	GenderOther  Gender = "Other"
)

func (g Gender) Valid() bool {
	switch g {
	case GenderMale, GenderFemale, GenderOther:
		return true
	}
	return false
}

type Modality string

const (
	ModalityCT         Modality = "CT"
	ModalityMRI        Modality = "MRI"
	ModalityXRay       Modality = "X-Ray"
	ModalityUltrasound Modality = "Ultrasound"
	ModalityMicroscopy Modality = "Microscopy"
	ModalityOther      Modality = "Other"
)

func (m Modality) Valid() bool {
	switch m {
	case ModalityCT, ModalityMRI, ModalityXRay, ModalityUltrasound, ModalityMicroscopy, ModalityOther:
		return true
	}
	return false
}

type PatientDetails struct {
	PatientName   string    `gorm:"not null;column:patient_name" json:"patientName"`
	PatientID     string    `gorm:"not null;column:patient_external_id" json:"patientId"`
	Age           int       `gorm:"not null;column:patient_age" json:"age"`
	Gender        Gender    `gorm:"not null;column:patient_gender" json:"gender"`
	Modality      Modality  `gorm:"not null;column:modality" json:"modality"`
	BodyPart      string    `gorm:"not null;column:body_part" json:"bodyPart"`
	ClinicalNotes string    `gorm:"column:clinical_notes" json:"clinicalNotes"`
	StudyDate     StudyDate `gorm:"not null;column:study_date" json:"studyDate"`
}

// Validate enforces the creation contract: every field except clinical notes
// is required, age is non-negative, and enum fields must carry a known value.
func (pd *PatientDetails) Validate() error {
	if strings.TrimSpace(pd.PatientName) == "" {
		return fmt.Errorf("patientName is required")
	}
	if strings.TrimSpace(pd.PatientID) == "" {
		return fmt.Errorf("patientId is required")
	}
	if pd.Age < 0 {
		return fmt.Errorf("age must be a non-negative integer")
	}
	if pd.Gender == "" {
		return fmt.Errorf("gender is required")
	}
	if !pd.Gender.Valid() {
		return fmt.Errorf("gender %q is not one of Male, Female, Other", pd.Gender)
	}
	if pd.Modality == "" {
		return fmt.Errorf("modality is required")
	}
	if !pd.Modality.Valid() {
		return fmt.Errorf("modality %q is not one of CT, MRI, X-Ray, Ultrasound, Microscopy, Other", pd.Modality)
	}
	if strings.TrimSpace(pd.BodyPart) == "" {
		return fmt.Errorf("bodyPart is required")
	}
	if pd.StudyDate.IsZero() {
		return fmt.Errorf("studyDate is required")
	}
	return nil
}

type Case struct {
	ID              uuid.UUID                    `gorm:"type:uuid;primaryKey" json:"id"`
	RadiologistID   uuid.UUID                    `gorm:"not null;index:idx_case_owner_created,priority:1" json:"radiologistId"`
	Radiologist     *User                        `gorm:"constraint:OnDelete:CASCADE;foreignKey:RadiologistID;references:ID" json:"-"`
	PatientDetails  PatientDetails               `gorm:"embedded" json:"patientDetails"`
	OriginalImages  datatypes.JSONSlice[string]  `gorm:"column:original_images" json:"originalImages"`
	SupportImages   datatypes.JSONSlice[string]  `gorm:"column:support_images" json:"supportImages"`
	SupportLabels   datatypes.JSONSlice[string]  `gorm:"column:support_labels" json:"supportLabels"`
	SegmentedImages datatypes.JSONSlice[string]  `gorm:"column:segmented_images" json:"segmentedImages"`
	Status          CaseStatus                   `gorm:"not null;default:created" json:"status"`
	ErrorMessage    string                       `gorm:"column:error_message" json:"errorMessage"`
	CreatedAt       time.Time                    `gorm:"not null;index:idx_case_owner_created,priority:2,sort:desc" json:"createdAt"`
	UpdatedAt       time.Time                    `gorm:"not null" json:"updatedAt"`
}

func (Case) TableName() string {
	return "case"
}

func NewCase(radiologistID uuid.UUID, details PatientDetails) *Case {
	return &Case{
		ID:              uuid.New(),
		RadiologistID:   radiologistID,
		PatientDetails:  details,
		OriginalImages:  datatypes.JSONSlice[string]{},
		SupportImages:   datatypes.JSONSlice[string]{},
		SupportLabels:   datatypes.JSONSlice[string]{},
		SegmentedImages: datatypes.JSONSlice[string]{},
		Status:          CaseStatusCreated,
	}
}
