package models

import "gorm.io/gorm"

// Migrate creates or updates every table the application owns
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&User{},
		&Connection{},
		&Team{},
		&TeamMember{},
		&Chat{},
		&ChatParticipant{},
		&Message{},
		&Notification{},
		&Plan{},
		&PaymentOrder{},
	)
}

// CreateDefaultPlans seeds the purchasable plans
func CreateDefaultPlans(db *gorm.DB) error {
	defaultPlans := []Plan{
		{
			Name:           "free",
			Description:    "Browse teams and connect with up to 50 people",
			Tier:           TierFree,
			Price:          0,
			MaxTeams:       1,
			MaxConnections: 50,
			DisplayPrice:   "$0",
		},
		{
			Name:            "pro",
			Description:     "Unlimited connections and up to 5 teams",
			Tier:            TierPro,
			Price:           1500, // $15
			MaxTeams:        5,
			MaxConnections:  0,
			PriorityListing: true,
			DisplayPrice:    "$15",
			IsPopular:       true,
		},
		{
			Name:            "scale",
			Description:     "For studios and accelerators running many teams",
			Tier:            TierScale,
			Price:           4900, // $49
			MaxTeams:        50,
			MaxConnections:  0,
			PriorityListing: true,
			DisplayPrice:    "$49",
		},
	}
	for _, plan := range defaultPlans {
		if err := db.FirstOrCreate(&plan, "name = ?", plan.Name).Error; err != nil {
			return err
		}
	}
	return nil
}
