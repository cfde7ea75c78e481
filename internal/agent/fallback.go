package agent

import "github.com/aegisharvest/coldchain/pkg/models"

// Fixed fallback datasets served when the store is empty or unavailable.
// The copilot must always have something to reason over.

var defaultRescuePoints = []models.RescuePoint{
	{Name: "QuickFreeze Depot", Distance: 12, RecoveryChance: 92, Type: models.RescueColdStorage, Available: true, ETA: 18},
	{Name: "FreshMart Outlet", Distance: 8, RecoveryChance: 78, Type: models.RescueMarket, Available: true, ETA: 12},
	{Name: "AgriProcess Plant", Distance: 22, RecoveryChance: 65, Type: models.RescueProcessing, Available: true, ETA: 30},
	{Name: "Metro Fresh Market", Distance: 5, RecoveryChance: 71, Type: models.RescueMarket, Available: true, ETA: 8},
}

var defaultFacilities = []models.Facility{
	{Name: "Centre A – Metro Cold Hub", Temperature: 3, Humidity: 88, PowerStatus: models.PowerNormal, StorageCapacity: 5000, CurrentLoad: 3200},
	{Name: "Centre B – Regional Depot", Temperature: 5, Humidity: 82, PowerStatus: models.PowerNormal, StorageCapacity: 3000, CurrentLoad: 2100},
}

var defaultRoutes = []models.Route{
	{RouteID: "R1", Name: "Route Alpha", Origin: "Farm Hub A", Destination: "Centre A", ETA: 180, SurvivalMargin: 900, Status: models.RouteOnTrack},
	{RouteID: "R2", Name: "Route Beta", Origin: "Farm Hub B", Destination: "Centre B", ETA: 240, SurvivalMargin: 600, Status: models.RouteOnTrack},
	{RouteID: "R3", Name: "Route Gamma", Origin: "Farm Hub C", Destination: "Centre A", ETA: 120, SurvivalMargin: 1200, Status: models.RouteOnTrack},
}
