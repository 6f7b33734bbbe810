// Package application contém os casos de uso do controle de admissão:
// limiter de janela fixa, tiered, adaptativo, global, login guard, burst guard,
// blocklist e o gate (Service.Decide) que compõe todos eles.
//
// Ele depende apenas do pacote domain e não conhece net/http.
// Toda falha do counter store é tratada em um único lugar (safeStore) com
// política fail-open: a request passa e a falha vai para o log/métricas.
package application
