package intervention

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/finsphere/finsphere/internal/profile"
)

func TestCurrentStress(t *testing.T) {
	readings := []profile.BiometricReading{
		{StressScore: 0.4, Timestamp: testNow.Add(-3 * time.Hour)},
		{StressScore: 0.8, Timestamp: testNow.Add(-1 * time.Hour)},
		{StressScore: 0.9, Timestamp: testNow.Add(-30 * time.Hour)},
	}
	assert.Equal(t, 0.8, CurrentStress(readings, 0.5, testNow))
	assert.Equal(t, 0.5, CurrentStress(readings[2:], 0.5, testNow))
	assert.Equal(t, DefaultBaselineStress, CurrentStress(nil, 0, testNow))
}

func TestBuildDashboard(t *testing.T) {
	in := DashboardInput{
		Biometrics: []profile.BiometricReading{
			{StressScore: 0.65, Timestamp: testNow.Add(-10 * time.Minute)},
		},
		Transactions: []profile.Transaction{
			{Amount: 2500, StressAtTime: 0.7, Timestamp: testNow.Add(-2 * time.Hour)},
		},
		Interventions: []profile.InterventionRecord{
			{ContextURL: "https://upwork.com", Message: "pricing", Timestamp: testNow.Add(-50 * time.Hour)},
			{ContextURL: "https://amazon.in", Message: "stress", Timestamp: testNow.Add(-5 * time.Minute)},
			{ContextURL: "https://zomato.com", Message: "late order", Timestamp: testNow.Add(-90 * time.Minute)},
			{ContextURL: "https://myntra.com", Message: "sale", Timestamp: testNow.Add(-3 * time.Hour)},
		},
		Financials: &profile.Financials{MonthlyExpenses: 40000, Savings: 180000},
	}

	d := BuildDashboard(in, testNow)

	assert.Equal(t, "Medium", d.StressLevel)
	assert.Equal(t, 0.65, d.StressScore)
	assert.Equal(t, "High", d.CognitiveLoad)
	assert.Equal(t, SpendingModerate, d.SpendingRisk)
	assert.Equal(t, "4.5 Mo", d.SavingsRunway)
	assert.Equal(t, []RecentIntervention{
		{Time: "5 minutes ago", Action: "Intervention on Amazon", Reason: "stress"},
		{Time: "1 hour ago", Action: "Intervention on Shopping Site", Reason: "late order"},
		{Time: "3 hours ago", Action: "Intervention on Myntra", Reason: "sale"},
	}, d.RecentInterventions)
}

func TestBuildDashboard_Empty(t *testing.T) {
	d := BuildDashboard(DashboardInput{}, testNow)

	assert.Equal(t, DefaultBaselineStress, d.StressScore)
	assert.Equal(t, "Low", d.StressLevel)
	assert.Equal(t, "Normal", d.CognitiveLoad)
	assert.Equal(t, SpendingSafe, d.SpendingRisk)
	assert.Equal(t, "Unknown", d.SavingsRunway)
	assert.Empty(t, d.RecentInterventions)

	d = BuildDashboard(DashboardInput{Financials: &profile.Financials{Savings: 500000}}, testNow)
	assert.Equal(t, "Unknown", d.SavingsRunway, "zero expenses have no runway")
}

func TestTimeAgo(t *testing.T) {
	assert.Equal(t, "0 minutes ago", TimeAgo(testNow, testNow))
	assert.Equal(t, "1 minute ago", TimeAgo(testNow.Add(-90*time.Second), testNow))
	assert.Equal(t, "60 minutes ago", TimeAgo(testNow.Add(-time.Hour), testNow))
	assert.Equal(t, "2 hours ago", TimeAgo(testNow.Add(-2*time.Hour), testNow))
	assert.Equal(t, "1 day ago", TimeAgo(testNow.Add(-25*time.Hour), testNow))
	assert.Equal(t, "3 days ago", TimeAgo(testNow.Add(-72*time.Hour), testNow))
	assert.Equal(t, "0 minutes ago", TimeAgo(testNow.Add(time.Hour), testNow))
}
