// Package pathmodel fits funnel path models as ordered sets of
// independent regressions sharing variables. This is a deliberate
// simplification of simultaneous-equation SEM: each edge is estimated
// on its own, with listwise deletion over its own variable subset, and
// coefficients are standardized so effects are comparable across edges
// with different raw scales.
//
// Every outcome's full model includes all upstream funnel variables as
// covariates; the mediation package relies on this convention when it
// reads direct effects.
//
// One fitter covers the OLS, logistic top-box, and penalized variants,
// parameterized by the edge's link function and penalty strategy.
package pathmodel
