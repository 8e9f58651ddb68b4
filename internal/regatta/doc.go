// Package regatta holds the TechScore domain model and its scoring rules.
//
// # Model
//
// A Regatta owns Teams, Races and Finishes. Fleet regattas race every
// team in every division; a race is identified by number and division
// ("3A"). Team racing regattas use a single division and each Race names
// the two teams (TeamA, TeamB) that meet.
//
// # Scoring
//
// Scoring is low-point. Score walks the finishes of each fleet in the
// order they were entered:
//
//   - standard: each race (number + division) is its own fleet
//   - combined: every division of a race number is one fleet
//   - team: each team race is a fleet of the boats on the water
//
// Penalties (DSQ, OCS, DNF, ...) score fleet size + 1 unless an amount
// is assigned. Displacing penalties move later boats up one place.
// Breakdowns (RDG, BKD, BYE) score the better of place and assigned
// amount, or the team's average in the division.
//
// # Ranking
//
// RankDivision, RankOverall and RankCombined order teams by total
// points, then by the sorted list of race scores, then by the most
// recent race that separates them.
package regatta
